package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

// RecoveryMw turns a handler panic into a 500 response.  onPanic, if set,
// is called with the recovered value.
type RecoveryMw struct {
	onPanic func(v interface{})
	next    http.Handler
}

func NewRecoveryMw(onPanic func(v interface{})) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return &RecoveryMw{onPanic: onPanic, next: next}
	}
}

func (mw *RecoveryMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}

		logging.Logger(r.Context()).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"stack":  string(debug.Stack()),
		}).Errorf("caught panic: %v", v)

		if mw.onPanic != nil {
			mw.onPanic(v)
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusInternalServerError)
		_, _ = rw.Write([]byte(`{"code":500,"message":"Internal Server Error"}` + "\n"))
	}()

	mw.next.ServeHTTP(rw, r)
}
