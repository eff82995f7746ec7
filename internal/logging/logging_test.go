package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, decodeLogLevel(in), in)
	}
}

func TestErrorsCarryTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Error("boom", slog.Any("error", WrapError(errors.New("disk full"), "create channel")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	errField, ok := entry["error"].(map[string]any)
	require.True(t, ok, "error should render as a group")
	assert.Contains(t, errField["msg"], "create channel")
	assert.Contains(t, errField["msg"], "disk full")
	assert.NotEmpty(t, errField["trace"])
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "nothing"))
}

func TestRequestFields(t *testing.T) {
	assert.Nil(t, RequestFields(context.Background()))

	ctx := WithRequestAttrs(context.Background(), &RequestAttrs{Method: "GET", Path: "/attach", IP: "10.0.0.1"})
	assert.Len(t, RequestFields(ctx), 3)

	ctx = UpdateRequestAttrs(ctx, "client-1", "publisher")
	attrs := GetRequestAttrs(ctx)
	require.NotNil(t, attrs)
	assert.Equal(t, "/attach", attrs.Path)
	assert.Equal(t, "client-1", attrs.ClientID)
	assert.Equal(t, "publisher", attrs.Role)
	assert.Len(t, RequestFields(ctx), 5)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"real ip header", map[string]string{"X-Real-IP": "1.2.3.4"}, "9.9.9.9:1", "1.2.3.4"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "9.9.9.9:1", "5.6.7.8"},
		{"remote v4", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"remote v6", nil, "[::1]:1234", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractClientIP(r))
		})
	}
}
