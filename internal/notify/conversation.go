package notify

import (
	"context"

	"github.com/google/uuid"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
)

// ConversationNotifier posts status-derived assistant messages into the
// owning conversation. It is purely additive: it never touches the
// generation record.
type ConversationNotifier struct {
	messages domain.MessageRepository
	logger   infra.Logger
}

// NewConversationNotifier constructs the notifier.
func NewConversationNotifier(messages domain.MessageRepository, logger infra.Logger) *ConversationNotifier {
	return &ConversationNotifier{messages: messages, logger: logger}
}

// Post stores the derived message as an assistant turn in the conversation.
func (n *ConversationNotifier) Post(ctx context.Context, conversationID, body string, kind domain.MessageKind, metadata map[string]any) error {
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "assistant",
		Kind:           kind,
		Body:           body,
		Metadata:       metadata,
	}
	if err := n.messages.Create(ctx, msg); err != nil {
		n.logger.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("kind", string(kind)).
			Msg("notify: failed to post conversation message")
		return err
	}
	return nil
}

var _ domain.NotificationSink = (*ConversationNotifier)(nil)
