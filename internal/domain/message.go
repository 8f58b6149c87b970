package domain

import "time"

// MessageKind classifies status-derived assistant messages.
type MessageKind string

const (
	MessageKindInfo   MessageKind = "info"
	MessageKindResult MessageKind = "result"
	MessageKindError  MessageKind = "error"
)

// Message is an assistant message posted into a conversation when a
// generation changes status. The generation record stays authoritative;
// messages are purely additive.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Kind           MessageKind
	Body           string
	Metadata       map[string]any
	CreatedAt      time.Time
}
