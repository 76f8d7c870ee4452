package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func TestHub_PublishReachesRoomOnly(t *testing.T) {
	hub := newTestHub(t)
	lobby := NewClient(hub, nil, "lobby")
	other := NewClient(hub, nil, "tournament_1")
	require.True(t, hub.join(lobby))
	require.True(t, hub.join(other))
	require.Eventually(t, func() bool {
		return hub.RoomSize("lobby") == 1 && hub.RoomSize("tournament_1") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish("lobby", map[string]string{"type": "TOURNAMENTS_UPDATED"})

	select {
	case msg := <-lobby.send:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, "TOURNAMENTS_UPDATED", decoded["type"])
	case <-time.After(time.Second):
		t.Fatal("lobby client did not receive the message")
	}
	assert.Empty(t, other.send)
}

func TestHub_LeaveClosesSendAndEmptiesRoom(t *testing.T) {
	hub := newTestHub(t)
	client := NewClient(hub, nil, "lobby")
	require.True(t, hub.join(client))
	assert.Eventually(t, func() bool { return hub.RoomSize("lobby") == 1 }, time.Second, 5*time.Millisecond)

	hub.leave(client)

	assert.Eventually(t, func() bool { return hub.RoomSize("lobby") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)

	// публикация в пустую комнату не паникует
	hub.Publish("lobby", "ignored")
}

func TestHub_StoppedHubRejectsClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	client := NewClient(hub, nil, "lobby")
	require.True(t, hub.join(client))

	cancel()
	<-stopped

	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.join(NewClient(hub, nil, "lobby")))
}

func TestClient_ServeOverWebsocket(t *testing.T) {
	hub := newTestHub(t)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, "lobby").Serve()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.RoomSize("lobby") == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish("lobby", map[string]string{"type": "REGISTRATIONS_UPDATED"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"REGISTRATIONS_UPDATED"}`, string(msg))
}
