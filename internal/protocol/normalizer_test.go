package protocol_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"courier/internal/models"
	"courier/internal/protocol"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_RecognizedShapes(t *testing.T) {
	normalizer := protocol.NewNormalizer(slog.Default())

	ts := []struct {
		name     string
		raw      string
		expected []models.Message
	}{
		{
			name: "Single message object",
			raw:  `{"sender":"alice","content":"hi","timestamp":1700000000001}`,
			expected: []models.Message{
				{Sender: "alice", Content: "hi", Timestamp: 1700000000001},
			},
		},
		{
			name: "Array of messages",
			raw:  `[{"sender":"alice","content":"one","timestamp":1},{"sender":"bob","content":"two","timestamp":2}]`,
			expected: []models.Message{
				{Sender: "alice", Content: "one", Timestamp: 1},
				{Sender: "bob", Content: "two", Timestamp: 2},
			},
		},
		{
			name: "Queue flush batch",
			raw:  `[{"messages":[{"sender":"alice","content":"queued 1","timestamp":10},{"sender":"alice","content":"queued 2","timestamp":11}]}]`,
			expected: []models.Message{
				{Sender: "alice", Content: "queued 1", Timestamp: 10},
				{Sender: "alice", Content: "queued 2", Timestamp: 11},
			},
		},
		{
			name: "Bare messages wrapper without array framing",
			raw:  `{"messages":[{"sender":"bob","content":"x","timestamp":5}]}`,
			expected: []models.Message{
				{Sender: "bob", Content: "x", Timestamp: 5},
			},
		},
		{
			name: "Empty content is preserved, not dropped",
			raw:  `{"sender":"alice","content":"","timestamp":7}`,
			expected: []models.Message{
				{Sender: "alice", Content: "", Timestamp: 7},
			},
		},
	}

	for _, tt := range ts {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizer.Normalize([]byte(tt.raw)))
		})
	}
}

func TestNormalize_MalformedPayloads(t *testing.T) {
	normalizer := protocol.NewNormalizer(slog.Default())

	ts := []struct {
		name string
		raw  string
	}{
		{name: "Not JSON", raw: `{{{not json`},
		{name: "Scalar", raw: `42`},
		{name: "String", raw: `"hello"`},
		{name: "Object without sender or messages", raw: `{"type":"ping"}`},
		{name: "Messages key holding a scalar", raw: `{"messages":"nope"}`},
		{name: "Empty sender", raw: `{"sender":"","content":"hi"}`},
		{name: "Numeric content", raw: `{"sender":"alice","content":12}`},
	}

	for _, tt := range ts {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Empty(t, normalizer.Normalize([]byte(tt.raw)))
			})
		})
	}
}

func TestNormalize_PreservesOrderAndLength(t *testing.T) {
	normalizer := protocol.NewNormalizer(slog.Default())

	batch := models.Batch{}
	for i := 0; i < 50; i++ {
		batch.Messages = append(batch.Messages, models.Message{
			Sender:    "alice",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: int64(1000 - i),
		})
	}
	raw, err := json.Marshal([]models.Batch{batch})
	assert.NoError(t, err)

	out := normalizer.Normalize(raw)

	// Arrival order is the ordering contract; descending timestamps must
	// not be reordered.
	assert.Equal(t, batch.Messages, out)
}

func TestNormalize_AssignsTimestampWhenOmitted(t *testing.T) {
	normalizer := protocol.NewNormalizer(slog.Default())

	out := normalizer.Normalize([]byte(`{"sender":"alice","content":"hi"}`))

	assert.Len(t, out, 1)
	assert.NotZero(t, out[0].Timestamp)
}
