package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/messagequeue"
)

// ReplayDeadLetters drains queueName and puts every entry back in the
// Firestore queue with a fresh attempt budget. It returns how many entries
// were replayed.
func ReplayDeadLetters(ctx context.Context, mq messagequeue.MessageQueue, queueName string, repo db.NotificationRepository, now func() time.Time) (int, error) {
	return mq.Consume(ctx, queueName, true, func(ctx context.Context, body []byte) error {
		var msg models.PendingWhatsappMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("failed to decode dead letter: %w", err)
		}
		msg.ID = ""
		msg.Attempts = 0
		msg.Processing = false
		msg.ClaimedBy = ""
		msg.ClaimedAt = nil
		msg.LastError = ""
		msg.NextAttemptAt = now().UTC()
		if _, err := repo.Enqueue(ctx, &msg); err != nil {
			return fmt.Errorf("failed to re-enqueue dead letter: %w", err)
		}
		return nil
	})
}
