package ports

import (
	"context"

	"courier/internal/models"
)

// ISessionPusher hands a wire frame to the live session a user holds on a
// given conversation target. It reports false when no such session exists or
// the session cannot accept the frame right now; the caller then falls back
// to the durable queue.
type ISessionPusher interface {
	Push(owner, target string, payload []byte) bool
}

// IDeliveryService routes outbound envelopes and flushes queued backlogs
// when sessions open.
type IDeliveryService interface {
	Dispatch(ctx context.Context, envelope models.Envelope) error
	Announce(ctx context.Context, announcement models.JoinAnnouncement)
	OnSessionOpen(ctx context.Context, owner, target string)
}
