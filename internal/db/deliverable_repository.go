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
)

// firestoreDeliverableRepository stores subscriptions/{planId}/deliverables.
type firestoreDeliverableRepository struct {
	client *firestore.Client
}

// NewFirestoreDeliverableRepository creates a new DeliverableRepository.
func NewFirestoreDeliverableRepository(client *firestore.Client) DeliverableRepository {
	return &firestoreDeliverableRepository{client: client}
}

func (r *firestoreDeliverableRepository) planRef(planID string) *firestore.DocumentRef {
	return r.client.Collection(plansCollection).Doc(planID)
}

// Add creates one available deliverable per content entry and raises the plan
// stock by the same amount, atomically.
func (r *firestoreDeliverableRepository) Add(ctx context.Context, planID string, contents []string, now time.Time) ([]string, error) {
	planRef := r.planRef(planID)
	ids := make([]string, 0, len(contents))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ids = ids[:0]
		if _, err := tx.Get(planRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("plan '%s': %w", planID, ErrNotFound)
			}
			return err
		}
		for i, content := range contents {
			ref := planRef.Collection(deliverablesCollection).NewDoc()
			d := models.Deliverable{
				Content: content,
				Status:  models.DeliverableAvailable,
				// Keep insertion order stable within one batch.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			if err := tx.Create(ref, d); err != nil {
				return err
			}
			ids = append(ids, ref.ID)
		}
		return tx.Update(planRef, []firestore.Update{{Path: "stock", Value: firestore.Increment(len(contents))}})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add deliverables to plan '%s': %w", planID, err)
	}
	return ids, nil
}

// List returns a plan's deliverables, oldest first.
func (r *firestoreDeliverableRepository) List(ctx context.Context, planID string) ([]*models.Deliverable, error) {
	iter := r.planRef(planID).Collection(deliverablesCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*models.Deliverable
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate deliverables of plan '%s': %w", planID, err)
		}
		var d models.Deliverable
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode deliverable '%s': %w", doc.Ref.ID, err)
		}
		d.ID = doc.Ref.ID
		d.PlanID = planID
		out = append(out, &d)
	}
	return out, nil
}

// DeleteAvailable removes an unsold deliverable and lowers the plan stock.
// Sold deliverables are kept as the sale record; deleting one is ErrConflict.
func (r *firestoreDeliverableRepository) DeleteAvailable(ctx context.Context, planID, deliverableID string) error {
	planRef := r.planRef(planID)
	ref := planRef.Collection(deliverablesCollection).Doc(deliverableID)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("deliverable '%s': %w", deliverableID, ErrNotFound)
			}
			return err
		}
		var d models.Deliverable
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if d.Status != models.DeliverableAvailable {
			return fmt.Errorf("deliverable '%s' is %s: %w", deliverableID, d.Status, ErrConflict)
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		return tx.Update(planRef, []firestore.Update{{Path: "stock", Value: firestore.Increment(-1)}})
	})
}

// ClaimOldestAvailable marks the earliest-created available deliverable as sold
// to buyerID and decrements the plan stock. Two concurrent claims never return
// the same deliverable: the transaction retries when its read set changes.
func (r *firestoreDeliverableRepository) ClaimOldestAvailable(ctx context.Context, planID, buyerID string, now time.Time) (*models.Deliverable, error) {
	planRef := r.planRef(planID)
	q := planRef.Collection(deliverablesCollection).
		Where("status", "==", models.DeliverableAvailable).
		OrderBy("createdAt", firestore.Asc).
		Limit(1)

	var claimed *models.Deliverable
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = nil
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			return ErrNoStock
		}
		planSnap, err := tx.Get(planRef)
		if err != nil {
			return err
		}

		var d models.Deliverable
		if err := snaps[0].DataTo(&d); err != nil {
			return err
		}
		d.ID = snaps[0].Ref.ID
		d.PlanID = planID
		d.Status = models.DeliverableSold
		d.SoldAt = &now
		d.SoldTo = buyerID

		if err := tx.Update(snaps[0].Ref, []firestore.Update{
			{Path: "status", Value: models.DeliverableSold},
			{Path: "soldAt", Value: now},
			{Path: "soldTo", Value: buyerID},
		}); err != nil {
			return err
		}

		var plan models.Plan
		if err := planSnap.DataTo(&plan); err == nil && plan.Stock > 0 {
			if err := tx.Update(planRef, []firestore.Update{{Path: "stock", Value: firestore.Increment(-1)}}); err != nil {
				return err
			}
		}
		claimed = &d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoStock) {
			return nil, ErrNoStock
		}
		return nil, fmt.Errorf("failed to claim deliverable of plan '%s': %w", planID, err)
	}
	return claimed, nil
}
