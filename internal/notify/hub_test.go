package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(func(*http.Request) bool { return true })
	var tracked, released atomic.Int32
	hub.Track = func() func() {
		tracked.Add(1)
		return func() { tracked.Add(-1) }
	}
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, "qa@example.com", func() { released.Add(1) })
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), tracked.Load())

	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	hub.Publish(Event{Type: EventSaved, Target: "marketplace/WordSplash", Actor: "editor@example.com", At: at})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, EventSaved, got.Type)
	assert.Equal(t, "marketplace/WordSplash", got.Target)
	assert.True(t, at.Equal(got.At))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return released.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), tracked.Load())
}

func TestHub_RejectedUpgradeReleases(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return false })
	var released atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, "qa@example.com", func() { released.Add(1) })
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Equal(t, int32(1), released.Load())
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for i := 0; i < 100; i++ {
		hub.Publish(Event{Type: EventRestored, Target: "AdminData.csv"})
	}
	assert.Equal(t, 0, hub.Clients())
}
