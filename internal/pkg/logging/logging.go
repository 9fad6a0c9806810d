package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

/*
 *  Diagnostics and request logging for the bridge
 */

type ctxID int

const (
	txnIDKey ctxID = iota
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// TxnID returns the transaction ID stored in ctx, if any
func TxnID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	txnID, ok := ctx.Value(txnIDKey).(string)
	return txnID, ok
}

var (
	mu         sync.RWMutex
	base       *logrus.Entry
	logFile    *os.File
	instanceID string
)

// Logger returns the process logger, tagged with the transaction ID from
// ctx when there is one.  ctx may be nil.
func Logger(ctx context.Context) *logrus.Entry {
	mu.RLock()
	l := base
	mu.RUnlock()

	if txnID, ok := TxnID(ctx); ok {
		return l.WithField("txnid", txnID)
	}

	return l
}

func processFields() logrus.Fields {
	return logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": instanceID,
	}
}

func init() {
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")

	// unique per process start
	instanceID = uuid.New().String()

	base = logrus.WithFields(processFields())
}

func openOutput(loc string) (io.Writer, *os.File, error) {
	switch loc {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr", "":
		return os.Stderr, nil, nil
	}

	file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	return file, file, nil
}

// Configure sets the log level, output location and format from cfg
func Configure(cfg *viper.Viper) error {
	// a --debug flag has already lowered the level
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	loc := cfg.GetString("logging.location")
	out, file, err := openOutput(loc)
	if err != nil {
		return err
	}

	Logger(nil).Debugf("logging to %s", loc)
	logrus.SetOutput(out)

	mu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	base = logrus.WithFields(processFields())
	mu.Unlock()

	// Route the standard library logger (used by net/http and paho) through us
	stdlog.SetFlags(0)
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}
