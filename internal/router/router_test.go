package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/config"
)

func newServer(t *testing.T, cfg *config.Config) (*httptest.Server, *channel.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	registry := channel.NewRegistry()
	srv := httptest.NewServer(New(ctx, cfg, registry))
	t.Cleanup(srv.Close)
	return srv, registry
}

func baseConfig() *config.Config {
	return &config.Config{
		DefaultChannelCapacity: 32,
		CORSAllowedOrigins:     []string{"http://localhost:5173"},
		WSReadBuffer:           1024,
		WSWriteBuffer:          1024,
		WSWriteTimeout:         time.Second,
		WSPingInterval:         time.Minute,
		WSMaxMessageSize:       1 << 16,
		SSEHeartbeatInterval:   time.Hour,
	}
}

func TestRoutes(t *testing.T) {
	srv, _ := newServer(t, baseConfig())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/getChannels", http.StatusOK},
		{http.MethodPost, "/createChannel?name=a", http.StatusCreated},
		{http.MethodGet, "/createChannel?name=a", http.StatusMethodNotAllowed},
		{http.MethodGet, "/attach", http.StatusBadRequest},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t, baseConfig())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/createChannel", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCreateChannelRateLimited(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimitPerMinute = 2
	srv, registry := newServer(t, cfg)

	codes := make([]int, 3)
	for i := range codes {
		resp, err := http.Post(srv.URL+"/createChannel?name=c", "", nil)
		require.NoError(t, err)
		resp.Body.Close()
		codes[i] = resp.StatusCode
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, registry.Len())

	// Listing is not limited.
	resp, err := http.Get(srv.URL + "/getChannels")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAttachRejectsForeignOrigin(t *testing.T) {
	srv, registry := newServer(t, baseConfig())
	id, err := registry.Create("a", 0)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/attach?role=subscriber&channels=" + id.String()
	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEndToEndThroughMiddleware(t *testing.T) {
	srv, _ := newServer(t, baseConfig())

	resp, err := http.Post(srv.URL+"/createChannel?name=news", "", nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	id, err := uuid.Parse(string(body))
	require.NoError(t, err)

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http") + "/attach?channels=" + id.String()
	sub, _, err := websocket.DefaultDialer.Dial(wsBase+"&role=subscriber", nil)
	require.NoError(t, err)
	defer sub.Close()

	// The subscriber is attached once the channel reports it.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/getChannels")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(b), `"subscribers":1`)
	}, 2*time.Second, 10*time.Millisecond)

	pub, _, err := websocket.DefaultDialer.Dial(wsBase+"&role=publisher", nil)
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.WriteMessage(websocket.TextMessage, []byte("breaking")))

	require.NoError(t, sub.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := sub.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "breaking", string(msg))
}
