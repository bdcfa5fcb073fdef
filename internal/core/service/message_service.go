package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	threadHistoryLimit = 200
	maxMessageLength   = 2000
)

// ThreadTopic is the notifier topic carrying changes of one chat thread.
func ThreadTopic(threadID string) string {
	return "thread:" + threadID
}

type messageService struct {
	messages ports.MessageRepository
	products ports.ProductRepository
	notes    ports.NotificationRepository
	notifier ports.Notifier
	policy   *bluemonday.Policy
	log      zerolog.Logger
	now      func() time.Time
}

// NewMessageService returns a MessageService implementation. Message text is
// stripped of all markup before it is stored.
func NewMessageService(
	messages ports.MessageRepository,
	products ports.ProductRepository,
	notes ports.NotificationRepository,
	notifier ports.Notifier,
	log zerolog.Logger,
) ports.MessageService {
	return &messageService{
		messages: messages,
		products: products,
		notes:    notes,
		notifier: notifier,
		policy:   bluemonday.StrictPolicy(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) Send(ctx context.Context, in ports.SendMessageInput) (*domain.Message, error) {
	text := strings.TrimSpace(s.policy.Sanitize(in.Text))
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}
	if len(text) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, maxMessageLength)
	}
	if in.SenderID == "" {
		return nil, fmt.Errorf("%w: sender is required", domain.ErrValidation)
	}

	threadID, productID, err := resolveThread(in.ThreadID, in.ProductID)
	if err != nil {
		return nil, err
	}

	var product *domain.Product
	if productID != "" {
		product, err = s.products.FindByID(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
	}

	msg, err := s.messages.Insert(ctx, &domain.Message{
		ThreadID:    threadID,
		ProductID:   productID,
		SenderID:    in.SenderID,
		SenderEmail: in.SenderEmail,
		Text:        text,
		Timestamp:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if err := s.notifier.Publish(ctx, ThreadTopic(threadID), []byte(msg.ID)); err != nil {
		s.log.Warn().Err(err).Str("thread_id", threadID).Msg("thread change not published")
	}
	if product != nil && product.OwnerUserID != in.SenderID {
		s.notifyOwner(ctx, product, msg)
	}

	kind := "lobby"
	if productID != "" {
		kind = "product"
	}
	metrics.MessagesSentTotal.WithLabelValues(kind).Inc()
	return msg, nil
}

func (s *messageService) List(ctx context.Context, threadID string) ([]*domain.Message, error) {
	threadID, _, err := resolveThread(threadID, "")
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByThread(ctx, threadID, threadHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// Subscribe delivers the full thread on subscribe and again after every
// change. The channel is closed when ctx is cancelled.
func (s *messageService) Subscribe(ctx context.Context, threadID string) (<-chan []*domain.Message, error) {
	threadID, _, err := resolveThread(threadID, "")
	if err != nil {
		return nil, err
	}
	changes, err := s.notifier.Subscribe(ctx, ThreadTopic(threadID))
	if err != nil {
		return nil, fmt.Errorf("subscribe thread: %w", err)
	}
	initial, err := s.List(ctx, threadID)
	if err != nil {
		return nil, err
	}

	out := make(chan []*domain.Message, 1)
	go func() {
		defer close(out)
		snapshot := initial
		for {
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				next, err := s.List(ctx, threadID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.log.Warn().Err(err).Str("thread_id", threadID).Msg("thread refresh failed")
					continue
				}
				snapshot = next
			}
		}
	}()
	return out, nil
}

func (s *messageService) notifyOwner(ctx context.Context, product *domain.Product, msg *domain.Message) {
	from := msg.SenderEmail
	if from == "" {
		from = "A buyer"
	}
	n := &domain.Notification{
		UserID:    product.OwnerUserID,
		Kind:      domain.NotificationMessage,
		Text:      fmt.Sprintf("%s sent a message about %s.", from, product.Name),
		CreatedAt: msg.Timestamp,
	}
	if err := s.notes.Insert(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("product_id", product.ID).Msg("message notification not stored")
	}
}

// resolveThread accepts either a thread id or a product id and returns both.
func resolveThread(threadID, productID string) (string, string, error) {
	threadID = strings.TrimSpace(threadID)
	productID = strings.TrimSpace(productID)

	switch {
	case productID != "":
		want := domain.ProductThread(productID)
		if threadID != "" && threadID != want {
			return "", "", fmt.Errorf("%w: thread does not match product", domain.ErrValidation)
		}
		return want, productID, nil
	case threadID == "" || threadID == domain.LobbyThread:
		return domain.LobbyThread, "", nil
	case strings.HasPrefix(threadID, "product:"):
		id := strings.TrimPrefix(threadID, "product:")
		if id == "" {
			return "", "", fmt.Errorf("%w: product thread needs a product id", domain.ErrValidation)
		}
		return threadID, id, nil
	default:
		return "", "", fmt.Errorf("%w: unknown thread %q", domain.ErrValidation, threadID)
	}
}
