package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

// MessageRepositoryPG implements domain.MessageRepository.
type MessageRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewMessageRepository creates a new message repository backed by PostgreSQL.
func NewMessageRepository(sql infra.SQLExecutor) *MessageRepositoryPG {
	return &MessageRepositoryPG{sql: sql}
}

// Create inserts a conversation message.
func (r *MessageRepositoryPG) Create(ctx context.Context, msg *domain.Message) error {
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("repo: encode message metadata: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertMessage,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		string(msg.Kind),
		msg.Body,
		raw,
	)
	return err
}

// ListRecent returns the newest messages in a conversation.
func (r *MessageRepositoryPG) ListRecent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentMessages, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Message
	for rows.Next() {
		var msg domain.Message
		var kind string
		var metadata []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &kind, &msg.Body, &metadata, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Kind = domain.MessageKind(kind)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("repo: decode message metadata: %w", err)
			}
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.MessageRepository = (*MessageRepositoryPG)(nil)
