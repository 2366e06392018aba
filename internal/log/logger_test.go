package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentDashboard})

	l.Info("evaluated", FieldBudgetID, "b1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ComponentDashboard, rec[FieldComponent])
	assert.Equal(t, "b1", rec[FieldBudgetID])

	buf.Reset()
	l.WithComponent(ComponentReport).Info("x")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ComponentReport, rec[FieldComponent])
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())

	l := Nop().WithComponent(ComponentHTTP)
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentHTTP})

	h := Middleware(l)(AccessLog(func(*http.Request) string { return "10.0.0.1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/overview?period=month", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(http.StatusTeapot), rec[FieldStatusCode])
	assert.Equal(t, "10.0.0.1", rec[FieldClientIP])
	assert.Equal(t, "period=month", rec[FieldQuery])
}

func TestLogFieldsBuilder(t *testing.T) {
	f := NewFields().WithTransaction("expense", "Food", 1250).WithRowsSkipped(2).WithError(nil)
	assert.Equal(t, int64(1250), f[FieldAmountCents])
	assert.Equal(t, 2, f[FieldRowsSkipped])
	_, hasErr := f[FieldError]
	assert.False(t, hasErr)
	assert.Len(t, f.ToSlice(), 6)
}
