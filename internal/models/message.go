package models

// Message is one chat utterance. Once appended to a conversation history it
// is immutable; the timestamp is assigned by whichever side originated the
// message and never rewritten afterwards.
type Message struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Envelope is the outbound wire frame built from local user intent.
type Envelope struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
}

// JoinAnnouncement is sent exactly once per session, right after the
// connection reaches Open.
type JoinAnnouncement struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// JoinText is the fixed body of a join announcement.
const JoinText = "joined the chat"

// Batch is the wire shape of a queue flush: the server sends drained
// messages as [{"messages": [...]}] so the client batch path fires.
type Batch struct {
	Messages []Message `json:"messages"`
}
