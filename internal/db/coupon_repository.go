package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

type firestoreCouponRepository struct {
	client *firestore.Client
}

// NewFirestoreCouponRepository creates a new CouponRepository. Codes are
// expected to be normalized (uppercased) by the caller.
func NewFirestoreCouponRepository(client *firestore.Client) CouponRepository {
	return &firestoreCouponRepository{client: client}
}

func (r *firestoreCouponRepository) Get(ctx context.Context, code string) (*models.Coupon, error) {
	snap, err := r.client.Collection(couponsCollection).Doc(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("coupon '%s': %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get coupon '%s': %w", code, err)
	}
	var c models.Coupon
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to decode coupon '%s': %w", code, err)
	}
	c.Code = snap.Ref.ID
	return &c, nil
}

func (r *firestoreCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if _, err := r.client.Collection(couponsCollection).Doc(coupon.Code).Create(ctx, coupon); err != nil {
		return fmt.Errorf("failed to create coupon '%s': %w", coupon.Code, database.MapError(err))
	}
	return nil
}

func (r *firestoreCouponRepository) List(ctx context.Context) ([]*models.Coupon, error) {
	iter := r.client.Collection(couponsCollection).Documents(ctx)
	defer iter.Stop()

	var coupons []*models.Coupon
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate coupons: %w", err)
		}
		var c models.Coupon
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("failed to decode coupon '%s': %w", doc.Ref.ID, err)
		}
		c.Code = doc.Ref.ID
		coupons = append(coupons, &c)
	}
	return coupons, nil
}

func (r *firestoreCouponRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.client.Collection(couponsCollection).Doc(code).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete coupon '%s': %w", code, database.MapError(err))
	}
	return nil
}
