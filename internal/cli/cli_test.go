package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/config"
	"github.com/channelcast/backend/internal/router"
)

func newServer(t *testing.T) (string, *channel.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		DefaultChannelCapacity: 32,
		WSReadBuffer:           1024,
		WSWriteBuffer:          1024,
		WSWriteTimeout:         time.Second,
		WSMaxMessageSize:       1 << 16,
		SSEHeartbeatInterval:   time.Hour,
	}
	registry := channel.NewRegistry()
	srv := httptest.NewServer(router.New(ctx, cfg, registry))
	t.Cleanup(srv.Close)
	return srv.URL, registry
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCreateAndList(t *testing.T) {
	server, registry := newServer(t)

	out, err := run(t, "", "--server", server, "create", "news", "--capacity", "8")
	require.NoError(t, err)
	id, err := uuid.Parse(strings.TrimSpace(out))
	require.NoError(t, err)

	ch, ok := registry.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, 8, ch.Capacity())

	out, err = run(t, "", "--server", server, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "news")

	out, err = run(t, "", "--server", server, "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"news"`)
}

func TestCreateRequiresName(t *testing.T) {
	_, err := run(t, "", "create")
	require.Error(t, err)
}

func TestServerErrorMessage(t *testing.T) {
	server, _ := newServer(t)

	_, err := run(t, "", "--server", server, "publish", "--channels", "not-a-uuid", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "unable to parse channel list")
}

func TestPublishSubscribe(t *testing.T) {
	server, registry := newServer(t)
	a, err := registry.Create("a", 0)
	require.NoError(t, err)
	b, err := registry.Create("b", 0)
	require.NoError(t, err)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := run(t, "", "--server", server, "subscribe",
			"--channels", a.String()+","+b.String(), "--count", "3")
		done <- result{out, err}
	}()

	chA, _ := registry.Lookup(a)
	chB, _ := registry.Lookup(b)
	require.Eventually(t, func() bool {
		return chA.Info().Subscribers == 1 && chB.Info().Subscribers == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err = run(t, "", "--server", server, "publish", "--channels", a.String(), "one")
	require.NoError(t, err)
	_, err = run(t, "two\n\nthree\n", "--server", server, "publish", "--channels", b.String())
	require.NoError(t, err)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		lines := strings.Split(strings.TrimSpace(res.out), "\n")
		assert.ElementsMatch(t, []string{"one", "two", "three"}, lines)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not receive three messages")
	}
}
