package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

// NewFirestoreNotificationRepository creates the pending_whatsapp_messages queue.
func NewFirestoreNotificationRepository(client *firestore.Client) NotificationRepository {
	return &firestoreNotificationRepository{client: client}
}

func (r *firestoreNotificationRepository) Enqueue(ctx context.Context, msg *models.PendingWhatsappMessage) (string, error) {
	ref := r.client.Collection(notificationsCollection).NewDoc()
	msg.ID = ref.ID
	if _, err := ref.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to enqueue %s notification: %w", msg.Type, err)
	}
	return ref.ID, nil
}

func decodeNotification(snap *firestore.DocumentSnapshot) (*models.PendingWhatsappMessage, error) {
	var m models.PendingWhatsappMessage
	if err := snap.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode notification '%s': %w", snap.Ref.ID, err)
	}
	m.ID = snap.Ref.ID
	return &m, nil
}

// Listen forwards added and modified entries. Removals are ignored.
func (r *firestoreNotificationRepository) Listen(ctx context.Context, fn func(*models.PendingWhatsappMessage)) error {
	it := r.client.Collection(notificationsCollection).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("notification listener failed: %w", err)
		}
		for _, change := range snap.Changes {
			if change.Kind == firestore.DocumentRemoved {
				continue
			}
			msg, err := decodeNotification(change.Doc)
			if err != nil {
				return err
			}
			fn(msg)
		}
	}
}

// ListDue returns entries whose next attempt time has passed, oldest first.
// Entries still held by a live claim are included; Claim filters them.
func (r *firestoreNotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.PendingWhatsappMessage, error) {
	q := r.client.Collection(notificationsCollection).
		Where("nextAttemptAt", "<=", now).
		OrderBy("nextAttemptAt", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*models.PendingWhatsappMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate due notifications: %w", err)
		}
		msg, err := decodeNotification(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Claim sets processing=true for workerID inside a transaction. A concurrent
// claimer either sees the claim and backs off or has its transaction retried.
func (r *firestoreNotificationRepository) Claim(ctx context.Context, id, workerID string, now time.Time, lease time.Duration) (*models.PendingWhatsappMessage, bool, error) {
	ref := r.client.Collection(notificationsCollection).Doc(id)
	var claimed *models.PendingWhatsappMessage

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = nil
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		msg, err := decodeNotification(snap)
		if err != nil {
			return err
		}
		if !msg.Claimable(now, lease) {
			return nil
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "processing", Value: true},
			{Path: "claimedBy", Value: workerID},
			{Path: "claimedAt", Value: now},
		}); err != nil {
			return err
		}
		msg.Processing = true
		msg.ClaimedBy = workerID
		msg.ClaimedAt = &now
		claimed = msg
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim notification '%s': %w", id, err)
	}
	return claimed, claimed != nil, nil
}

// Reschedule records a failed attempt and releases the claim.
func (r *firestoreNotificationRepository) Reschedule(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	_, err := r.client.Collection(notificationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "attempts", Value: attempts},
		{Path: "nextAttemptAt", Value: next},
		{Path: "lastError", Value: lastErr},
		{Path: "processing", Value: false},
		{Path: "claimedBy", Value: firestore.Delete},
		{Path: "claimedAt", Value: firestore.Delete},
	})
	if err != nil {
		return fmt.Errorf("failed to reschedule notification '%s': %w", id, database.MapError(err))
	}
	return nil
}

func (r *firestoreNotificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(notificationsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete notification '%s': %w", id, database.MapError(err))
	}
	return nil
}
