package client

import (
	"errors"
	"log/slog"
	"testing"

	"courier/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFail_ClosedNotificationIsLatched(t *testing.T) {
	manager := NewSessionManager("ws://unused", "dev", slog.Default())

	var closedNotifications int
	manager.OnState(func(_ models.ConversationIdentifier, state SessionState) {
		if state == StateClosed {
			closedNotifications++
		}
	})

	session := &Session{
		id:    models.ConversationIdentifier{Kind: models.KindPrivate, Target: "alice"},
		state: StateOpen,
	}
	manager.mu.Lock()
	manager.active = session
	manager.mu.Unlock()

	// A write error and a read error can both reach fail for the same
	// still-active session; only the first transition is a disconnect.
	manager.fail(session, errors.New("write: broken pipe"))
	manager.fail(session, errors.New("read: connection reset"))

	assert.Equal(t, 1, closedNotifications)
	assert.Equal(t, StateClosed, manager.State())
}
