package core

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderTemplate replaces each {name} in tpl with data[name]. Placeholders
// without a value are left as they are.
func RenderTemplate(tpl string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		if v, ok := data[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

type notificationService struct {
	queue  db.NotificationRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService creates the queue producer.
func NewNotificationService(queue db.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationService{queue: queue, logger: logger, now: time.Now}
}

// Enqueue appends a pending message. Recipients without a phone number are
// skipped silently.
func (s *notificationService) Enqueue(ctx context.Context, t models.NotificationType, phone string, data map[string]string) error {
	to := whatsapp.NormalizePhone(phone)
	if to == "" {
		s.logger.Debug("Skipping notification without phone", zap.String("type", string(t)))
		return nil
	}
	now := s.now().UTC()
	msg := &models.PendingWhatsappMessage{
		Type:          t,
		To:            to,
		CreatedAt:     now,
		Data:          data,
		NextAttemptAt: now,
	}
	if _, err := s.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", t, err)
	}
	return nil
}
