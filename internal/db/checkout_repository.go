package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

type firestoreCheckoutRepository struct {
	client *firestore.Client
}

// NewFirestoreCheckoutRepository creates a new CheckoutRepository.
func NewFirestoreCheckoutRepository(client *firestore.Client) CheckoutRepository {
	return &firestoreCheckoutRepository{client: client}
}

// Create stores the checkout under checkout.ID, or a generated ID when empty.
func (r *firestoreCheckoutRepository) Create(ctx context.Context, checkout *models.Checkout) (string, error) {
	col := r.client.Collection(checkoutsCollection)
	ref := col.NewDoc()
	if checkout.ID != "" {
		ref = col.Doc(checkout.ID)
	}
	checkout.ID = ref.ID
	if _, err := ref.Create(ctx, checkout); err != nil {
		return "", fmt.Errorf("failed to create checkout '%s': %w", ref.ID, database.MapError(err))
	}
	return ref.ID, nil
}

func (r *firestoreCheckoutRepository) GetByID(ctx context.Context, checkoutID string) (*models.Checkout, error) {
	snap, err := r.client.Collection(checkoutsCollection).Doc(checkoutID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("checkout '%s': %w", checkoutID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get checkout '%s': %w", checkoutID, err)
	}
	var c models.Checkout
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout '%s': %w", checkoutID, err)
	}
	c.ID = snap.Ref.ID
	return &c, nil
}

// BeginFulfillment is the Firestore half of the fulfillment guard: only one
// caller can move a checkout out of pending.
func (r *firestoreCheckoutRepository) BeginFulfillment(ctx context.Context, checkoutID string, now time.Time) (*models.Checkout, error) {
	ref := r.client.Collection(checkoutsCollection).Doc(checkoutID)
	var out *models.Checkout

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return database.MapError(err)
		}
		var c models.Checkout
		if err := snap.DataTo(&c); err != nil {
			return err
		}
		if c.Status != models.CheckoutPending {
			return fmt.Errorf("checkout '%s' is %s: %w", checkoutID, c.Status, ErrConflict)
		}
		c.ID = checkoutID
		c.Status = models.CheckoutFulfilling
		c.UpdatedAt = now
		out = &c
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.CheckoutFulfilling},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *firestoreCheckoutRepository) Complete(ctx context.Context, checkoutID, ticketID string, now time.Time) error {
	_, err := r.client.Collection(checkoutsCollection).Doc(checkoutID).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.CheckoutFulfilled},
		{Path: "ticketId", Value: ticketID},
		{Path: "updatedAt", Value: now},
	})
	if err != nil {
		return fmt.Errorf("failed to complete checkout '%s': %w", checkoutID, database.MapError(err))
	}
	return nil
}

func (r *firestoreCheckoutRepository) Fail(ctx context.Context, checkoutID, reason string, now time.Time) error {
	_, err := r.client.Collection(checkoutsCollection).Doc(checkoutID).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.CheckoutFailed},
		{Path: "error", Value: reason},
		{Path: "updatedAt", Value: now},
	})
	if err != nil {
		return fmt.Errorf("failed to mark checkout '%s' failed: %w", checkoutID, database.MapError(err))
	}
	return nil
}
