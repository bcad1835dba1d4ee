package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/database"
)

// serviceRepository keeps the services collection on the generic document store.
type serviceRepository struct {
	store database.FirestoreDB
}

// NewServiceRepository creates a ServiceRepository over a generic FirestoreDB.
func NewServiceRepository(store database.FirestoreDB) ServiceRepository {
	return &serviceRepository{store: store}
}

func (r *serviceRepository) List(ctx context.Context) ([]*models.SubscriptionService, error) {
	docs, err := r.store.Query(ctx, servicesCollection, database.QueryOptions{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	services := make([]*models.SubscriptionService, 0, len(docs))
	for _, doc := range docs {
		var svc models.SubscriptionService
		if err := doc.DataTo(&svc); err != nil {
			return nil, fmt.Errorf("failed to decode service '%s': %w", doc.ID, err)
		}
		svc.ID = doc.ID
		services = append(services, &svc)
	}
	return services, nil
}

func (r *serviceRepository) GetByID(ctx context.Context, serviceID string) (*models.SubscriptionService, error) {
	var svc models.SubscriptionService
	if err := r.store.Get(ctx, servicesCollection, serviceID, &svc); err != nil {
		return nil, fmt.Errorf("service '%s': %w", serviceID, err)
	}
	svc.ID = serviceID
	return &svc, nil
}

func (r *serviceRepository) Create(ctx context.Context, svc *models.SubscriptionService) (string, error) {
	id, err := r.store.Add(ctx, servicesCollection, svc)
	if err != nil {
		return "", fmt.Errorf("failed to create service: %w", err)
	}
	svc.ID = id
	return id, nil
}

func (r *serviceRepository) Update(ctx context.Context, svc *models.SubscriptionService) error {
	err := r.store.Update(ctx, servicesCollection, svc.ID, map[string]interface{}{
		"name":            svc.Name,
		"description":     svc.Description,
		"longDescription": svc.LongDescription,
		"logoUrl":         svc.LogoURL,
		"bannerUrl":       svc.BannerURL,
	})
	if err != nil {
		return fmt.Errorf("failed to update service '%s': %w", svc.ID, err)
	}
	return nil
}

func (r *serviceRepository) Delete(ctx context.Context, serviceID string) error {
	if err := r.store.Delete(ctx, servicesCollection, serviceID); err != nil {
		return fmt.Errorf("failed to delete service '%s': %w", serviceID, err)
	}
	return nil
}

// firestorePlanRepository implements PlanRepository. Plans live in "subscriptions".
type firestorePlanRepository struct {
	client *firestore.Client
}

// NewFirestorePlanRepository creates a new instance of firestorePlanRepository.
func NewFirestorePlanRepository(client *firestore.Client) PlanRepository {
	return &firestorePlanRepository{client: client}
}

func (r *firestorePlanRepository) list(ctx context.Context, q firestore.Query) ([]*models.Plan, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var plans []*models.Plan
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate plans: %w", err)
		}
		var p models.Plan
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode plan '%s': %w", doc.Ref.ID, err)
		}
		p.ID = doc.Ref.ID
		plans = append(plans, &p)
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })
	return plans, nil
}

// ListByService returns the plans of a service, cheapest first.
func (r *firestorePlanRepository) ListByService(ctx context.Context, serviceID string) ([]*models.Plan, error) {
	return r.list(ctx, r.client.Collection(plansCollection).Where("serviceId", "==", serviceID))
}

// ListBySeller returns every plan a seller owns.
func (r *firestorePlanRepository) ListBySeller(ctx context.Context, sellerID string) ([]*models.Plan, error) {
	return r.list(ctx, r.client.Collection(plansCollection).Where("sellerId", "==", sellerID))
}

func (r *firestorePlanRepository) GetByID(ctx context.Context, planID string) (*models.Plan, error) {
	if planID == "" {
		return nil, errors.New("planID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(plansCollection).Doc(planID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("plan with ID '%s' not found: %w", planID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan with ID '%s': %w", planID, err)
	}
	var p models.Plan
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode plan '%s': %w", planID, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

// Create adds a plan with an auto-generated ID and zero stock.
func (r *firestorePlanRepository) Create(ctx context.Context, plan *models.Plan) (string, error) {
	ref := r.client.Collection(plansCollection).NewDoc()
	plan.ID = ref.ID
	plan.Stock = 0
	if _, err := ref.Create(ctx, plan); err != nil {
		return "", fmt.Errorf("failed to create plan: %w", err)
	}
	return ref.ID, nil
}

func (r *firestorePlanRepository) Update(ctx context.Context, plan *models.Plan) error {
	features := plan.Features
	if features == nil {
		features = []string{}
	}
	_, err := r.client.Collection(plansCollection).Doc(plan.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: plan.Name},
		{Path: "price", Value: plan.Price},
		{Path: "features", Value: features},
		{Path: "accountModel", Value: plan.AccountModel},
		{Path: "userLimit", Value: plan.UserLimit},
		{Path: "quality", Value: plan.Quality},
		{Path: "bannerUrl", Value: plan.BannerURL},
	})
	if err != nil {
		return fmt.Errorf("failed to update plan '%s': %w", plan.ID, database.MapError(err))
	}
	return nil
}

// Delete removes the plan document. Remaining deliverables are removed first
// so no orphaned credentials stay behind.
func (r *firestorePlanRepository) Delete(ctx context.Context, planID string) error {
	ref := r.client.Collection(plansCollection).Doc(planID)
	iter := ref.Collection(deliverablesCollection).Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list deliverables of plan '%s': %w", planID, err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			bw.End()
			return fmt.Errorf("failed to queue deliverable delete: %w", err)
		}
	}
	bw.End()

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete plan '%s': %w", planID, database.MapError(err))
	}
	return nil
}
