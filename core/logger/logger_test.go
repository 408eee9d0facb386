package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger_KeepsExisting(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	require.NotNil(t, rlog)

	ctx2, rlog2 := ContextWithLogger(ctx)
	assert.Equal(t, ctx, ctx2)
	assert.Equal(t, rlog, rlog2)
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestSerializeRoundTrip(t *testing.T) {
	ctx, _ := ContextWithLogger(context.Background())
	ctx, rlog := ContextWithLoggerIdentity(ctx, "maria@apae.org.br")
	assert.Equal(t, "maria@apae.org.br", rlog.Data[FieldIdentity])
	data := SerializeLoggerContext(ctx)

	restored := ContextWithLoggerFromData(context.Background(), data)
	assert.Equal(t, FieldsFromContext(ctx), FieldsFromContext(restored))
	assert.Equal(t, "maria@apae.org.br", FieldsFromContext(restored).Identity)
	assert.Equal(t, RequestIDFromContext(ctx), FromContext(restored).Data[FieldRequestID])
}

func TestContextWithLoggerFromData_InvalidData(t *testing.T) {
	ctx := ContextWithLoggerFromData(context.Background(), []byte("not json"))
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	ctx = ContextWithLoggerFromData(context.Background(), []byte(`{"identity":"x"}`))
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.Empty(t, FieldsFromContext(ctx).Identity)
	assert.Equal(t, "{}", string(SerializeLoggerContext(context.Background())))
}

func TestAddRequestID(t *testing.T) {
	hook := test.NewGlobal()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	router := mux.NewRouter()
	AddRequestID(router)
	var seen string
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "GET /ping", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, seen, entry.Data[FieldRequestID])
}

func TestAddRequestID_KeepsProxyID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {})

	const fromProxy = "7f0c2b8e-4a51-4c3e-9f2a-1d2b3c4d5e6f"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, fromProxy)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, fromProxy, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\nforged log line")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid\nforged log line", rec.Header().Get(RequestIDHeader))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}

func TestInitLogger(t *testing.T) {
	std := logrus.StandardLogger()
	formatter, level := std.Formatter, std.GetLevel()
	defer func() {
		std.SetFormatter(formatter)
		std.SetLevel(level)
	}()

	InitLogger(logrus.WarnLevel, "JSON")
	assert.IsType(t, &logrus.JSONFormatter{}, std.Formatter)
	assert.Equal(t, logrus.WarnLevel, std.GetLevel())

	InitLogger(logrus.InfoLevel, "")
	assert.IsType(t, &logrus.TextFormatter{}, std.Formatter)
}
