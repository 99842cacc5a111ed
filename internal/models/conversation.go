package models

// ConversationKind separates user-to-user chats from named groups.
type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// ConversationIdentifier is the resolved routing target of a session. It is
// derived once per raw token; a new raw token always produces a new
// identifier and therefore a new session.
type ConversationIdentifier struct {
	Kind   ConversationKind
	Target string
}

// QueueKey addresses one recipient's pending buffer in the durable store.
// Group is empty for private deliveries.
type QueueKey struct {
	Owner string
	Group string
}

func (k QueueKey) Kind() ConversationKind {
	if k.Group != "" {
		return KindGroup
	}
	return KindPrivate
}
