// Package logger provides an HTTP middleware that writes one structured
// access log entry per request.
//
// Usage:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//		w.Write([]byte("Hello, world!"))
//	})
//
//	l := logger.New(
//	    logger.WithLogger(logrus.StandardLogger()),
//	    logger.WithLevel(logrus.DebugLevel),
//	)
//
//	http.ListenAndServe(":8080", l.Handler(mux))
//
// Each entry carries the fields method, path, status, latency, ip and
// bytes. Responses with a 5xx status are logged at error level.
package logger

import (
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bluescreen10/sessionstore"
)

// responseWriter wraps http.ResponseWriter to capture the response status
// code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger is a middleware that captures request details and writes
// them as structured entries.
type Logger struct {
	logger sessionstore.Logger
	level  logrus.Level
}

type config func(*Logger)

// WithLogger sets the destination logger. (default standard logrus logger.)
func WithLogger(logger sessionstore.Logger) config {
	return config(func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	})
}

// WithLevel sets the level of successful requests. (default info.)
func WithLevel(level logrus.Level) config {
	return config(func(l *Logger) {
		l.level = level
	})
}

// Handler wraps an http.Handler and logs every request once it completes.
func (l *Logger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		entry := l.logger.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rw.statusCode,
			"latency": time.Since(start).String(),
			"ip":      ip,
			"bytes":   rw.written,
		})

		level := l.level
		if rw.statusCode >= http.StatusInternalServerError {
			level = logrus.ErrorLevel
		}
		logAt(entry, level, "request served")
	})
}

func logAt(entry logrus.FieldLogger, level logrus.Level, msg string) {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		entry.Error(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.InfoLevel:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

// New creates a new Logger middleware with optional configuration.
func New(cfgs ...config) *Logger {
	lgr := &Logger{
		logger: sessionstore.DefaultLogger("http"),
		level:  logrus.InfoLevel,
	}

	for _, cfg := range cfgs {
		cfg(lgr)
	}

	return lgr
}
