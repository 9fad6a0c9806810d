package middlewares

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

const TxnIDHeader = "X-Txn-ID"

type responseWriterEx struct {
	http.ResponseWriter

	ctx              context.Context
	statusCode       int
	size             int
	logBodies        bool
	hasLoggedHeaders bool
}

func (rw *responseWriterEx) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriterEx) Write(b []byte) (int, error) {
	if rw.logBodies && !rw.hasLoggedHeaders {
		logging.Logger(rw.ctx).Debugf("response headers: %+v", rw.ResponseWriter.Header())
		rw.hasLoggedHeaders = true
	}

	size, err := rw.ResponseWriter.Write(b)
	rw.size += size

	if err == nil && rw.logBodies {
		logging.Logger(rw.ctx).Debugf("response body (%d bytes): %s", size, b[:size])
	}
	return size, err
}

// bodyLogger logs every read of a request body
type bodyLogger struct {
	io.ReadCloser
	ctx context.Context
}

func (bl bodyLogger) Read(b []byte) (int, error) {
	size, err := bl.ReadCloser.Read(b)
	if size > 0 {
		logging.Logger(bl.ctx).Debugf("request body (%d bytes): %s", size, b[:size])
	}

	return size, err
}

// LoggingMw tags each request with a transaction ID and writes one audit
// entry per request.  With logBodies set, request and response bodies are
// logged at debug level.
type LoggingMw struct {
	logBodies bool
	next      http.Handler
}

func NewLoggingMw(logBodies bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewLogging(logBodies, next)
	}
}

func NewLogging(logBodies bool, next http.Handler) *LoggingMw {
	return &LoggingMw{next: next, logBodies: logBodies}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}

	return ""
}

func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	txnID := uuid.New().String()
	startTime := time.Now()

	// before anything writes the body
	rw.Header().Set(TxnIDHeader, txnID)

	r = r.WithContext(logging.WithTxnID(r.Context(), txnID))

	if mw.logBodies {
		logging.Logger(r.Context()).Debugf("request headers: %+v", r.Header)
		r.Body = bodyLogger{ReadCloser: r.Body, ctx: r.Context()}
	}

	rwex := &responseWriterEx{
		ResponseWriter: rw,
		ctx:            r.Context(),
		statusCode:     http.StatusOK,
		logBodies:      mw.logBodies,
	}
	mw.next.ServeHTTP(rwex, r)

	logging.Logger(r.Context()).WithFields(
		logrus.Fields{
			"entrytype": "audit",
			"status":    rwex.statusCode,
			"method":    r.Method,
			"route":     routeTemplate(r),
			"path":      r.URL.String(),
			"remote":    r.RemoteAddr,
			"start":     startTime.Format(time.RFC3339Nano),
			"duration":  time.Since(startTime),
			"size":      rwex.size,
		},
	).Info(http.StatusText(rwex.statusCode))
}
