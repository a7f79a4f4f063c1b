// pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// New builds the service logger. format is "text" (default) or "json".
func New(out io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := log.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		l.SetFormatter(&log.TextFormatter{QuoteEmptyFields: true, FullTimestamp: true})
	case "json":
		l.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return l, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// Component tags every entry with the emitting component.
func Component(l log.FieldLogger, name string) *log.Entry {
	return l.WithField("component", name)
}

// RequestLogger is a chi request logger writing one logrus entry per request.
func RequestLogger(l log.FieldLogger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&requestFormatter{logger: l})
}

type requestFormatter struct {
	logger log.FieldLogger
}

func (f *requestFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"remote": r.RemoteAddr,
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["request_id"] = reqID
	}
	return &requestEntry{entry: f.logger.WithFields(fields)}
}

type requestEntry struct {
	entry *log.Entry
}

func (e *requestEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	entry := e.entry.WithFields(log.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.String(),
	})
	switch {
	case status >= 500:
		entry.Warn("request completed")
	default:
		entry.Info("request completed")
	}
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.entry.WithFields(log.Fields{
		"panic": fmt.Sprintf("%+v", v),
		"stack": string(stack),
	}).Error("request panicked")
}
