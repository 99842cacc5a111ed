package protocol

import (
	"encoding/json"
	"log/slog"
	"time"

	"courier/internal/models"

	"github.com/samber/lo"
)

// Normalizer converts heterogeneous wire payloads into a canonical ordered
// message sequence. Recognized shapes are a single message object, an array
// of messages, and the queue-flush form [{"messages": [...]}]. Anything else
// is logged and dropped: one bad frame must not terminate the connection or
// corrupt already-rendered history, so Normalize never returns an error.
type Normalizer struct {
	logger *slog.Logger

	// now supplies timestamps for frames that omit one.
	now func() time.Time
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		logger: logger,
		now:    time.Now,
	}
}

// Normalize decodes one wire frame and returns its messages in source order,
// or an empty sequence if the frame matches no recognized shape.
func (n *Normalizer) Normalize(raw []byte) []models.Message {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		n.logger.Warn("Dropping undecodable frame", "error", err)
		return nil
	}

	messages := n.collect(decoded)
	if messages == nil {
		n.logger.Warn("Dropping unrecognized payload shape")
	}
	return messages
}

func (n *Normalizer) collect(decoded any) []models.Message {
	switch payload := decoded.(type) {
	case []any:
		return lo.FlatMap(payload, func(item any, _ int) []models.Message {
			return n.collect(item)
		})
	case map[string]any:
		if wrapped, ok := payload["messages"].([]any); ok {
			return lo.FlatMap(wrapped, func(item any, _ int) []models.Message {
				return n.collect(item)
			})
		}
		if message, ok := n.toMessage(payload); ok {
			return []models.Message{message}
		}
		return nil
	default:
		return nil
	}
}

func (n *Normalizer) toMessage(fields map[string]any) (models.Message, bool) {
	sender, ok := fields["sender"].(string)
	if !ok || sender == "" {
		return models.Message{}, false
	}

	content, ok := fields["content"].(string)
	if !ok {
		return models.Message{}, false
	}

	timestamp := n.now().UnixMilli()
	if raw, ok := fields["timestamp"].(float64); ok {
		timestamp = int64(raw)
	}

	return models.Message{
		Sender:    sender,
		Content:   content,
		Timestamp: timestamp,
	}, true
}
