package ports

import (
	"context"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) (*domain.Message, error)
	// ListByThread returns the thread ordered by timestamp, oldest first.
	ListByThread(ctx context.Context, threadID string, limit int) ([]*domain.Message, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}
