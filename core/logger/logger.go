// Package logger provides request scoped logrus loggers.
//
// Every HTTP request gets its own entry carrying a request ID, taken from the
// X-Request-Id header of a proxy or generated. Once the requester is
// authenticated the entry also carries the identity. Change events carry the
// same fields in their payload, so publishers log with the request that
// caused them.
package logger

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request ID. A valid incoming value is kept,
// every response gets one.
const RequestIDHeader = "X-Request-Id"

// field names of request scoped entries
const (
	FieldRequestID = "requestID"
	FieldIdentity  = "identity"
)

// Fields are the request scoped values of a logger
type Fields struct {
	RequestID string `json:"requestID"`
	Identity  string `json:"identity,omitempty"`
}

func (f Fields) entry() *logrus.Entry {
	e := logrus.WithField(FieldRequestID, f.RequestID)
	if f.Identity != "" {
		e = e.WithField(FieldIdentity, f.Identity)
	}
	return e
}

type scope struct {
	fields Fields
	entry  *logrus.Entry
}

type scopeKey struct{}

func withScope(ctx context.Context, f Fields) (context.Context, *logrus.Entry) {
	s := &scope{fields: f, entry: f.entry()}
	return context.WithValue(ctx, scopeKey{}, s), s.entry
}

func scopeOf(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// InitLogger configures the standard logger. Format "json" selects the JSON
// formatter for log collectors, anything else the text formatter.
func InitLogger(level logrus.Level, format string) {
	logrus.SetLevel(level)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
}

// ParseLevel parses a textual log level. Unknown levels fall back to info.
func ParseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

// requestID returns the request ID sent by a proxy if it is a UUID, a new one otherwise
func requestID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AddRequestID installs the request scoped logger on router. Each request is
// logged on debug level with its status and duration.
func AddRequestID(router *mux.Router) {
	router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if scopeOf(ctx) == nil {
				ctx, _ = withScope(ctx, Fields{RequestID: requestID(r)})
			}
			w.Header().Set(RequestIDHeader, RequestIDFromContext(ctx))
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			h.ServeHTTP(sw, r.WithContext(ctx))
			FromContext(ctx).WithFields(logrus.Fields{
				"status":   sw.status,
				"duration": time.Since(start).Round(time.Microsecond).String(),
			}).Debugf("%s %s", r.Method, r.URL.Path)
		})
	})
}

// Default returns a logger without a request ID.
func Default() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

// FromContext returns the logger of ctx, or the default logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if s := scopeOf(ctx); s != nil {
		return s.entry
	}
	return Default()
}

// FieldsFromContext returns the request scoped fields of ctx, empty without a logger
func FieldsFromContext(ctx context.Context) Fields {
	if s := scopeOf(ctx); s != nil {
		return s.fields
	}
	return Fields{}
}

// RequestIDFromContext returns the request ID of ctx, empty without a logger
func RequestIDFromContext(ctx context.Context) string {
	return FieldsFromContext(ctx).RequestID
}

// ContextWithLogger returns ctx unchanged if it has a logger, otherwise a
// context with a logger for a new request ID.
func ContextWithLogger(ctx context.Context) (context.Context, *logrus.Entry) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s := scopeOf(ctx); s != nil {
		return ctx, s.entry
	}
	return withScope(ctx, Fields{RequestID: uuid.NewString()})
}

// ContextWithLoggerIdentity returns a context whose logger also carries identity.
func ContextWithLoggerIdentity(ctx context.Context, identity string) (context.Context, *logrus.Entry) {
	ctx, _ = ContextWithLogger(ctx)
	f := scopeOf(ctx).fields
	f.Identity = identity
	return withScope(ctx, f)
}

// SerializeLoggerContext returns the fields of the logger of ctx as JSON, "{}" without a logger.
func SerializeLoggerContext(ctx context.Context) []byte {
	f := FieldsFromContext(ctx)
	if f.RequestID == "" {
		return []byte("{}")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// ContextWithLoggerFromData returns ctx unchanged if it has a logger.
// Otherwise the logger is restored from data written by
// SerializeLoggerContext, or created for a new request ID if data is unusable.
func ContextWithLoggerFromData(ctx context.Context, data []byte) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if scopeOf(ctx) != nil {
		return ctx
	}
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil || f.RequestID == "" {
		f = Fields{RequestID: uuid.NewString()}
	}
	ctx, _ = withScope(ctx, f)
	return ctx
}
