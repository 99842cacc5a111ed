package client_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courier/internal/client"
	"courier/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatServer is a minimal conversation endpoint: it records every frame a
// client writes and lets the test push frames back.
type chatServer struct {
	*httptest.Server
	frames chan []byte
}

func newChatServer(t *testing.T, onSession func(target, self string, conn *websocket.Conn)) *chatServer {
	t.Helper()
	s := &chatServer{frames: make(chan []byte, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		require.Len(t, parts, 2)

		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		if onSession != nil {
			go onSession(parts[0], parts[1], conn)
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.frames <- raw
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *chatServer) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case raw := <-s.frames:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func waitForState(t *testing.T, states <-chan client.SessionState, expected client.SessionState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-states:
			if state == expected {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", expected)
		}
	}
}

func TestSend_EmptyTextIsANoOp(t *testing.T) {
	manager := client.NewSessionManager("ws://unused", "dev", slog.Default())

	require.NoError(t, manager.Send(""))
	require.NoError(t, manager.Send("   "))

	assert.Empty(t, manager.Messages())
}

func TestSend_WithoutOpenSessionIsANoOp(t *testing.T) {
	manager := client.NewSessionManager("ws://unused", "dev", slog.Default())

	require.NoError(t, manager.Send("hello"))

	assert.Empty(t, manager.Messages())
}

func TestActivate_SendsJoinAnnouncement(t *testing.T) {
	server := newChatServer(t, nil)

	states := make(chan client.SessionState, 8)
	manager := client.NewSessionManager(server.wsURL(), "dev", slog.Default())
	manager.OnState(func(_ models.ConversationIdentifier, s client.SessionState) { states <- s })
	defer manager.Close()

	manager.ActivateToken(context.Background(), "alice")
	waitForState(t, states, client.StateOpen)

	var join models.JoinAnnouncement
	require.NoError(t, json.Unmarshal(server.nextFrame(t), &join))
	assert.Equal(t, models.JoinAnnouncement{
		Sender:    "dev",
		Recipient: "alice",
		Text:      "joined the chat",
	}, join)
}

func TestSend_BuildsEnvelopeAndAppendsOneEcho(t *testing.T) {
	server := newChatServer(t, nil)

	states := make(chan client.SessionState, 8)
	manager := client.NewSessionManager(server.wsURL(), "dev", slog.Default())
	manager.OnState(func(_ models.ConversationIdentifier, s client.SessionState) { states <- s })
	defer manager.Close()

	manager.ActivateToken(context.Background(), "alice")
	waitForState(t, states, client.StateOpen)
	server.nextFrame(t) // join announcement

	manager.SetDraft("hello")
	require.NoError(t, manager.SendDraft())

	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(server.nextFrame(t), &envelope))
	assert.Equal(t, models.Envelope{
		Type:     "private",
		Sender:   "dev",
		Receiver: "alice",
		Content:  "hello",
	}, envelope)

	history := manager.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "dev", history[0].Sender)
	assert.Equal(t, "hello", history[0].Content)
	assert.NotZero(t, history[0].Timestamp)

	assert.Empty(t, manager.Draft())
}

func TestSend_GroupConversationUsesGroupEnvelope(t *testing.T) {
	server := newChatServer(t, nil)

	states := make(chan client.SessionState, 8)
	manager := client.NewSessionManager(server.wsURL(), "dev", slog.Default())
	manager.OnState(func(_ models.ConversationIdentifier, s client.SessionState) { states <- s })
	defer manager.Close()

	manager.ActivateToken(context.Background(), "group:team1")
	waitForState(t, states, client.StateOpen)

	var join models.JoinAnnouncement
	require.NoError(t, json.Unmarshal(server.nextFrame(t), &join))
	assert.Equal(t, "team1", join.Recipient)

	require.NoError(t, manager.Send("hi"))

	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(server.nextFrame(t), &envelope))
	assert.Equal(t, models.Envelope{
		Type:     "group",
		Sender:   "dev",
		Receiver: "team1",
		Content:  "hi",
	}, envelope)
}

func TestInbound_AppendsInArrivalOrder(t *testing.T) {
	batch := `[{"messages":[{"sender":"alice","content":"first","timestamp":99},{"sender":"alice","content":"second","timestamp":12}]}]`
	server := newChatServer(t, func(target, self string, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(batch))
	})

	appended := make(chan []models.Message, 8)
	manager := client.NewSessionManager(server.wsURL(), "dev", slog.Default())
	manager.OnAppend(func(messages []models.Message) { appended <- messages })
	defer manager.Close()

	manager.ActivateToken(context.Background(), "alice")

	select {
	case messages := <-appended:
		require.Len(t, messages, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound messages")
	}

	history := manager.Messages()
	require.Len(t, history, 2)
	// Arrival order, not timestamp order.
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
}

func TestActivate_SwitchDropsMessagesFromAbandonedSession(t *testing.T) {
	server := newChatServer(t, func(target, self string, conn *websocket.Conn) {
		if target == "alice" {
			// Arrives after the client has already switched away.
			time.Sleep(150 * time.Millisecond)
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"sender":"alice","content":"stale","timestamp":1}`))
			return
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"sender":"bob","content":"fresh","timestamp":2}`))
	})

	appended := make(chan []models.Message, 8)
	manager := client.NewSessionManager(server.wsURL(), "dev", slog.Default())
	manager.OnAppend(func(messages []models.Message) { appended <- messages })
	defer manager.Close()

	manager.ActivateToken(context.Background(), "alice")
	manager.ActivateToken(context.Background(), "bob")

	select {
	case <-appended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bob's message")
	}
	time.Sleep(300 * time.Millisecond)

	for _, message := range manager.Messages() {
		assert.NotEqual(t, "stale", message.Content,
			"history must never contain a message from an abandoned session")
	}
}

func TestActivate_EmptyTargetMeansNoSession(t *testing.T) {
	manager := client.NewSessionManager("ws://unused", "dev", slog.Default())

	manager.ActivateToken(context.Background(), "")

	assert.Equal(t, client.StateClosed, manager.State())
	require.NoError(t, manager.Send("hello"))
	assert.Empty(t, manager.Messages())
}
