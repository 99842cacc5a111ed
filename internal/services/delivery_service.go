package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"courier/internal/models"
	"courier/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics is optional; a nil field skips that counter.
type DeliveryMetrics struct {
	Queued    prometheus.Counter
	Delivered prometheus.Counter
	Drained   prometheus.Counter
}

// DeliveryService routes outbound envelopes to live sessions and falls back
// to the durable queue for offline recipients. Delivery is at-least-once:
// there is no dedup between an optimistic client echo, a direct push and a
// later drain, and overlapping drain/append races are an accepted risk.
type DeliveryService struct {
	store    ports.IQueueStore
	registry ports.IGroupRegistry
	hub      ports.ISessionPusher
	logger   *slog.Logger
	metrics  DeliveryMetrics

	now func() time.Time
}

func NewDeliveryService(store ports.IQueueStore, registry ports.IGroupRegistry, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// SetWSHub breaks the construction cycle: the hub routes inbound frames to
// this service, and this service pushes outbound frames through the hub.
func (s *DeliveryService) SetWSHub(hub ports.ISessionPusher) {
	s.hub = hub
}

func (s *DeliveryService) SetMetrics(metrics DeliveryMetrics) {
	s.metrics = metrics
}

// Dispatch resolves the recipient set of one envelope and delivers to each
// member: a direct push when a live session exists on the same conversation,
// an append to that recipient's queue otherwise.
func (s *DeliveryService) Dispatch(ctx context.Context, envelope models.Envelope) error {
	if envelope.Sender == "" || envelope.Receiver == "" {
		return ErrInvalidEnvelope
	}
	if strings.TrimSpace(envelope.Content) == "" {
		return ErrEmptyContent
	}

	message := models.Message{
		Sender:    envelope.Sender,
		Content:   envelope.Content,
		Timestamp: s.now().UnixMilli(),
	}

	switch envelope.Type {
	case string(models.KindPrivate):
		// The recipient's mirror of this conversation is keyed by the
		// sender's identity.
		return s.deliver(ctx, envelope.Receiver, envelope.Sender, models.QueueKey{Owner: envelope.Receiver}, message)

	case string(models.KindGroup):
		group := envelope.Receiver
		if err := s.registry.Join(ctx, group, envelope.Sender); err != nil {
			s.logger.Error("failed to record group membership", "group", group, "user", envelope.Sender, "error", err)
		}

		members, err := s.registry.Members(ctx, group)
		if err != nil {
			return err
		}

		for _, member := range members {
			if member == envelope.Sender {
				// The sender already holds the optimistic echo.
				continue
			}
			key := models.QueueKey{Owner: member, Group: group}
			if err := s.deliver(ctx, member, group, key, message); err != nil {
				s.logger.Error("group delivery failed", "group", group, "member", member, "error", err)
			}
		}
		return nil

	default:
		return ErrUnknownEnvelopeType
	}
}

func (s *DeliveryService) deliver(ctx context.Context, recipient, target string, key models.QueueKey, message models.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if s.hub != nil && s.hub.Push(recipient, target, payload) {
		s.logger.Debug("message pushed to live session", "recipient", recipient, "target", target)
		s.count(s.metrics.Delivered)
		return nil
	}

	if err := s.store.Append(ctx, key, message); err != nil {
		return err
	}

	s.logger.Debug("message queued for offline recipient", "recipient", recipient, "target", target)
	s.count(s.metrics.Queued)
	return nil
}

// Announce handles a join announcement frame. The announcement itself
// carries no message content; it only confirms membership when the recipient
// is a known group.
func (s *DeliveryService) Announce(ctx context.Context, announcement models.JoinAnnouncement) {
	s.logger.Info("user joined conversation", "user", announcement.Sender, "conversation", announcement.Recipient)

	known, err := s.registry.IsGroup(ctx, announcement.Recipient)
	if err != nil {
		s.logger.Error("group lookup failed", "group", announcement.Recipient, "error", err)
		return
	}
	if known {
		if err := s.registry.Join(ctx, announcement.Recipient, announcement.Sender); err != nil {
			s.logger.Error("failed to record group membership", "group", announcement.Recipient, "error", err)
		}
	}
}

// OnSessionOpen drains the owner's pending queue and flushes it to the newly
// live session as one batch frame shaped [{"messages": [...]}]. If the push
// fails the batch is re-queued, preserving at-least-once delivery.
func (s *DeliveryService) OnSessionOpen(ctx context.Context, owner, target string) {
	key := models.QueueKey{Owner: owner}

	known, err := s.registry.IsGroup(ctx, target)
	if err != nil {
		s.logger.Error("group lookup failed", "group", target, "error", err)
	}
	if known {
		key.Group = target
		if err := s.registry.Join(ctx, target, owner); err != nil {
			s.logger.Error("failed to record group membership", "group", target, "error", err)
		}
	}

	pending, err := s.store.Drain(ctx, key)
	if err != nil {
		s.logger.Error("queue drain failed", "owner", owner, "group", key.Group, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	payload, err := json.Marshal([]models.Batch{{Messages: pending}})
	if err != nil {
		s.logger.Error("failed to encode queue flush", "owner", owner, "error", err)
		return
	}

	if s.hub == nil || !s.hub.Push(owner, target, payload) {
		// The session vanished between open and flush; put everything back.
		for _, message := range pending {
			if err := s.store.Append(ctx, key, message); err != nil {
				s.logger.Error("failed to requeue message", "owner", owner, "error", err)
			}
		}
		return
	}

	s.logger.Info("queued backlog flushed", "owner", owner, "group", key.Group, "count", len(pending))
	for range pending {
		s.count(s.metrics.Drained)
	}
}

func (s *DeliveryService) count(counter prometheus.Counter) {
	if counter != nil {
		counter.Inc()
	}
}

var (
	ErrInvalidEnvelope     = errors.New("envelope is missing sender or receiver")
	ErrEmptyContent        = errors.New("envelope content is empty")
	ErrUnknownEnvelopeType = errors.New("unknown envelope type")
)
