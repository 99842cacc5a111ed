package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"courier/internal/conversation"
	"courier/internal/models"
	"courier/internal/protocol"

	"github.com/gorilla/websocket"
)

// SessionManager owns the single live session of one chat client. Activating
// a conversation tears the previous session down without waiting for its
// close handshake and dials the new endpoint; effects of an abandoned
// session's callbacks are suppressed by comparing the session's bound
// identifier against the currently active one.
//
// There is no automatic reconnection: after a disconnect the session stays
// Closed until the next Activate call.
type SessionManager struct {
	self    string
	baseURL string
	dialer  *websocket.Dialer

	normalizer *protocol.Normalizer
	logger     *slog.Logger

	mu      sync.Mutex
	active  *Session
	history []models.Message
	draft   string

	onAppend func([]models.Message)
	onState  func(models.ConversationIdentifier, SessionState)

	now func() time.Time
}

// NewSessionManager builds a manager for the given user identity. baseURL is
// the websocket endpoint root, e.g. "ws://localhost:8080/ws"; the
// conversation target and the identity become path segments on dial.
func NewSessionManager(baseURL, self string, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		self:       self,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dialer:     websocket.DefaultDialer,
		normalizer: protocol.NewNormalizer(logger),
		logger:     logger,
		now:        time.Now,
	}
}

// OnAppend registers the callback invoked with every batch of messages
// appended to history. Register before the first Activate.
func (m *SessionManager) OnAppend(fn func([]models.Message)) {
	m.mu.Lock()
	m.onAppend = fn
	m.mu.Unlock()
}

// OnState registers the callback invoked on session state transitions; a
// Closed transition is the "disconnected" signal the UI layer renders as an
// inert input.
func (m *SessionManager) OnState(fn func(models.ConversationIdentifier, SessionState)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

// ActivateToken resolves a raw routing token and activates the resulting
// conversation.
func (m *SessionManager) ActivateToken(ctx context.Context, token string) {
	m.Activate(ctx, conversation.Resolve(token))
}

// Activate replaces the current session, if any, with a new one bound to id.
// The previous session's close is fire-and-forget; the switch never blocks
// on it. An identifier with an empty target means "no session": the current
// one is discarded and nothing is dialed.
func (m *SessionManager) Activate(ctx context.Context, id models.ConversationIdentifier) {
	m.mu.Lock()
	previous := m.active
	m.active = nil
	m.history = nil
	m.draft = ""

	var next *Session
	if id.Target != "" {
		next = &Session{id: id, state: StateConnecting}
		m.active = next
	}
	if previous != nil {
		previous.state = StateClosing
	}
	m.mu.Unlock()

	if previous != nil {
		go previous.shutdown()
	}
	if next == nil {
		return
	}

	m.notifyState(id, StateConnecting)
	go m.dial(ctx, next)
}

// Close discards the active session, as on view unmount.
func (m *SessionManager) Close() {
	m.Activate(context.Background(), models.ConversationIdentifier{})
}

func (m *SessionManager) dial(ctx context.Context, s *Session) {
	endpoint := fmt.Sprintf("%s/%s/%s", m.baseURL, s.id.Target, m.self)

	conn, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	if m.active != s {
		// The conversation changed while this attempt was in flight; the
		// attempt no longer corresponds to the active identifier.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.state = StateClosed
		m.mu.Unlock()
		m.logger.Error("connection failed", "target", s.id.Target, "error", err)
		m.notifyState(s.id, StateClosed)
		return
	}
	s.setConn(conn)
	s.state = StateOpen
	m.mu.Unlock()

	m.notifyState(s.id, StateOpen)

	join := models.JoinAnnouncement{
		Sender:    m.self,
		Recipient: s.id.Target,
		Text:      models.JoinText,
	}
	if err := s.writeJSON(join); err != nil {
		m.fail(s, err)
		return
	}

	m.readLoop(s)
}

func (m *SessionManager) readLoop(s *Session) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			m.fail(s, err)
			return
		}

		messages := m.normalizer.Normalize(raw)
		if len(messages) == 0 {
			continue
		}

		m.mu.Lock()
		if m.active != s {
			m.mu.Unlock()
			return
		}
		m.history = append(m.history, messages...)
		callback := m.onAppend
		m.mu.Unlock()

		if callback != nil {
			callback(messages)
		}
	}
}

func (m *SessionManager) fail(s *Session, err error) {
	m.mu.Lock()
	stale := m.active != s
	// Closed latches: a write error and a read error racing on the same
	// session must surface as a single disconnect.
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	m.mu.Unlock()

	s.shutdown()

	if stale || alreadyClosed {
		return
	}

	m.logger.Warn("session disconnected", "target", s.id.Target, "error", err)
	m.notifyState(s.id, StateClosed)
}

// Send transmits text on the open session and appends exactly one optimistic
// local echo, without waiting for any server acknowledgment (there is none
// in this protocol). Trimmed-empty text, or the absence of an open session,
// makes it a silent no-op.
func (m *SessionManager) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.mu.Lock()
	s := m.active
	if s == nil || s.state != StateOpen {
		m.mu.Unlock()
		return nil
	}
	envelope := models.Envelope{
		Type:     string(s.id.Kind),
		Sender:   m.self,
		Receiver: s.id.Target,
		Content:  text,
	}
	echo := models.Message{
		Sender:    m.self,
		Content:   text,
		Timestamp: m.now().UnixMilli(),
	}
	m.mu.Unlock()

	if err := s.writeJSON(envelope); err != nil {
		m.fail(s, err)
		return err
	}

	m.mu.Lock()
	if m.active != s {
		m.mu.Unlock()
		return nil
	}
	m.history = append(m.history, echo)
	m.draft = ""
	callback := m.onAppend
	m.mu.Unlock()

	if callback != nil {
		callback([]models.Message{echo})
	}
	return nil
}

// SetDraft stores the compose buffer; SendDraft transmits and clears it.
func (m *SessionManager) SetDraft(text string) {
	m.mu.Lock()
	m.draft = text
	m.mu.Unlock()
}

func (m *SessionManager) Draft() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

func (m *SessionManager) SendDraft() error {
	m.mu.Lock()
	draft := m.draft
	m.mu.Unlock()
	return m.Send(draft)
}

// Messages returns a snapshot of the active conversation's history, in
// arrival order.
func (m *SessionManager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.history))
	copy(out, m.history)
	return out
}

// State reports the active session's state, or Closed when there is none.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return StateClosed
	}
	return m.active.state
}

func (m *SessionManager) notifyState(id models.ConversationIdentifier, state SessionState) {
	m.mu.Lock()
	callback := m.onState
	m.mu.Unlock()
	if callback != nil {
		callback(id, state)
	}
}
