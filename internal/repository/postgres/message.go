package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/errors"
)

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Insert(ctx context.Context, m *domain.ConversationMessage) error {
	query := `
        INSERT INTO conversation_messages (id, order_id, sender_id, body, is_system, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := r.db.ExecContext(ctx, query, m.ID, m.OrderID, m.SenderID, m.Body, m.IsSystem, m.CreatedAt)
	return errors.Wrap(err, "failed to insert conversation message")
}

func (r *MessageRepository) FindByOrder(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]*domain.ConversationMessage, error) {
	var messages []*domain.ConversationMessage
	query := `
        SELECT id, order_id, sender_id, body, is_system, created_at
        FROM conversation_messages
        WHERE order_id = $1
        ORDER BY created_at ASC
        LIMIT $2 OFFSET $3
    `

	err := r.db.SelectContext(ctx, &messages, query, orderID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation messages")
	}
	return messages, nil
}
