package client

import (
	"sync"
	"time"

	"courier/internal/models"

	"github.com/gorilla/websocket"
)

// SessionState tracks the lifecycle of one live connection:
// Connecting → Open → Closing → Closed, with Open → Closed reachable
// directly on a transport error.
type SessionState string

const (
	StateConnecting SessionState = "connecting"
	StateOpen       SessionState = "open"
	StateClosing    SessionState = "closing"
	StateClosed     SessionState = "closed"
)

// Session is a live connection bound to exactly one conversation identifier.
// The binding never changes: switching conversations always discards the
// session and creates a new one.
type Session struct {
	id    models.ConversationIdentifier
	state SessionState

	// writeMu serializes writes and guards conn, which is assigned after
	// the dial completes.
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (s *Session) Identifier() models.ConversationIdentifier {
	return s.id
}

func (s *Session) setConn(conn *websocket.Conn) {
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// shutdown starts the close handshake and releases the connection. It is
// fire-and-forget: a discarded session finishes closing on its own time
// while the replacement is already being dialed.
func (s *Session) shutdown() {
	s.writeMu.Lock()
	conn := s.conn
	s.writeMu.Unlock()

	if conn == nil {
		return
	}

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	conn.Close()
}
