package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

// firestoreSubscriptionRepository stores users/{userId}/userSubscriptions.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new SubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	return &firestoreSubscriptionRepository{client: client}
}

func (r *firestoreSubscriptionRepository) col(userID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(userSubscriptionsCollection)
}

func (r *firestoreSubscriptionRepository) Create(ctx context.Context, sub *models.UserSubscription) (string, error) {
	ref := r.col(sub.UserID).NewDoc()
	sub.ID = ref.ID
	if _, err := ref.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("failed to create subscription for user '%s': %w", sub.UserID, err)
	}
	return ref.ID, nil
}

func (r *firestoreSubscriptionRepository) Get(ctx context.Context, userID, subscriptionID string) (*models.UserSubscription, error) {
	snap, err := r.col(userID).Doc(subscriptionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription '%s': %w", subscriptionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription '%s': %w", subscriptionID, err)
	}
	var s models.UserSubscription
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("failed to decode subscription '%s': %w", subscriptionID, err)
	}
	s.ID = snap.Ref.ID
	return &s, nil
}

// ListByUser returns a user's purchases, most recent first.
func (r *firestoreSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserSubscription, error) {
	iter := r.col(userID).OrderBy("startDate", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var subs []*models.UserSubscription
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate subscriptions of '%s': %w", userID, err)
		}
		var s models.UserSubscription
		if err := doc.DataTo(&s); err != nil {
			return nil, fmt.Errorf("failed to decode subscription '%s': %w", doc.Ref.ID, err)
		}
		s.ID = doc.Ref.ID
		subs = append(subs, &s)
	}
	return subs, nil
}

func (r *firestoreSubscriptionRepository) SetTicketID(ctx context.Context, userID, subscriptionID, ticketID string) error {
	_, err := r.col(userID).Doc(subscriptionID).Update(ctx, []firestore.Update{{Path: "ticketId", Value: ticketID}})
	if err != nil {
		return fmt.Errorf("failed to link ticket to subscription '%s': %w", subscriptionID, database.MapError(err))
	}
	return nil
}

func (r *firestoreSubscriptionRepository) SetEndDate(ctx context.Context, userID, subscriptionID string, end time.Time) error {
	_, err := r.col(userID).Doc(subscriptionID).Update(ctx, []firestore.Update{{Path: "endDate", Value: end}})
	if err != nil {
		return fmt.Errorf("failed to extend subscription '%s': %w", subscriptionID, database.MapError(err))
	}
	return nil
}
