package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, userID string) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(HubOptions{
		Logger: zerolog.Nop(),
		Authorize: func(_ context.Context, uid string, ch broadcast.Channel) bool {
			return uid == userID && ch.Name == "conversation.c1"
		},
	})
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, userID)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) broadcast.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env broadcast.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_SubscribeAndReceive(t *testing.T) {
	hub, conn := startHub(t, "7")

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "conversation.c1"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, EventSubscribed, env.Event)
	assert.Equal(t, "conversation.c1", env.Channel)

	require.NoError(t, hub.Broadcast(context.Background(), broadcast.NewMessageDeleted("c1", 3, "2")))
	env = readEnvelope(t, conn)
	assert.Equal(t, broadcast.EventMessageDeleted, env.Event)
	assert.Equal(t, "3", env.Data["message_id"])
}

func TestHub_RejectsUnauthorizedChannel(t *testing.T) {
	hub, conn := startHub(t, "7")

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "conversation.c2"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, EventSubscriptionError, env.Event)
	assert.Zero(t, hub.Subscribers(broadcast.ConversationChannel("c2")))
}

func TestHub_UserChannelIsAutomatic(t *testing.T) {
	hub, conn := startHub(t, "7")

	require.Eventually(t, func() bool {
		return hub.Subscribers(broadcast.UserChannel("7")) == 1
	}, time.Second, 5*time.Millisecond)

	conv := &domain.Conversation{ID: "c9", OwnerID: "1", Participants: []domain.Participant{{UserID: "1"}, {UserID: "7"}}}
	require.NoError(t, hub.Broadcast(context.Background(), broadcast.NewConversationCreated(conv)))

	env := readEnvelope(t, conn)
	assert.Equal(t, broadcast.EventConversationCreated, env.Event)
	assert.Equal(t, "user.7", env.Channel)
}

func TestHub_UnsubscribeAndDisconnect(t *testing.T) {
	hub, conn := startHub(t, "7")

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "conversation.c1"}))
	readEnvelope(t, conn)
	assert.Equal(t, 1, hub.Subscribers(broadcast.ConversationChannel("c1")))

	raw, err := json.Marshal(ClientMessage{Action: ActionUnsubscribe, Channel: "conversation.c1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
	require.Eventually(t, func() bool {
		return hub.Subscribers(broadcast.ConversationChannel("c1")) == 0
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.Subscribers(broadcast.UserChannel("7")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastAfterStop(t *testing.T) {
	hub := NewHub(HubOptions{Logger: zerolog.Nop()})
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// deliver is buffered, so fill it to force the stopped branch
	for i := 0; i < cap(hub.deliver); i++ {
		hub.deliver <- &delivery{}
	}
	assert.Error(t, hub.Broadcast(ctx, broadcast.NewMessageDeleted("c1", 1, "2")))
}
