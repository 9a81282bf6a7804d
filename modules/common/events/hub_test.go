package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub("*", zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestPublishReachesOnlyThatUser(t *testing.T) {
	hub, base := startHub(t)

	alice := dial(t, base+"?user=alice")
	defer alice.Close()
	bob := dial(t, base+"?user=bob")
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount("alice") == 1 && hub.ClientCount("bob") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("alice", Event{Type: TypeStage, RequestID: "req-1", Stage: "analyzed"})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, TypeStage, got.Type)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "analyzed", got.Stage)
	assert.False(t, got.Timestamp.IsZero())

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err, "bob should not receive alice's events")
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	hub, base := startHub(t)

	first := dial(t, base+"?user=u")
	defer first.Close()
	second := dial(t, base+"?user=u")
	defer second.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("u") == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish("u", Event{Type: TypeCompleted, RequestID: "r"})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got Event
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, TypeCompleted, got.Type)
	}

	m := hub.Metrics()
	assert.Equal(t, 2, m.TotalConnections)
	assert.Equal(t, 1, m.ActiveUsers)
	assert.Equal(t, 2, m.ActiveClients)
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub, base := startHub(t)

	conn := dial(t, base+"?user=gone")
	require.Eventually(t, func() bool { return hub.ClientCount("gone") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount("gone") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Metrics().ActiveUsers)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub("*", zap.NewNop())
	assert.NotPanics(t, func() {
		hub.Publish("nobody", Event{Type: TypeFailed})
	})
}

func TestOriginCheck(t *testing.T) {
	hub := NewHub("https://razza.app", zap.NewNop())

	ok := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ok.Header.Set("Origin", "https://razza.app")
	assert.True(t, hub.upgrader.CheckOrigin(ok))

	bad := httptest.NewRequest(http.MethodGet, "/ws", nil)
	bad.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.upgrader.CheckOrigin(bad))
}
