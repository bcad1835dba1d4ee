package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
)

const redactedContent = "••••••"

type catalogService struct {
	services     db.ServiceRepository
	plans        db.PlanRepository
	deliverables db.DeliverableRepository
	sealer       Sealer
	validate     *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(services db.ServiceRepository, plans db.PlanRepository, deliverables db.DeliverableRepository, sealer Sealer, logger *zap.Logger) CatalogService {
	return &catalogService{
		services:     services,
		plans:        plans,
		deliverables: deliverables,
		sealer:       sealer,
		validate:     newValidator(),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *catalogService) ListServices(ctx context.Context) ([]*models.SubscriptionService, error) {
	return s.services.List(ctx)
}

func (s *catalogService) GetService(ctx context.Context, serviceID string) (*models.SubscriptionService, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrServiceNotFound, serviceID)
		}
		return nil, err
	}
	return svc, nil
}

func (s *catalogService) CreateService(ctx context.Context, svc models.SubscriptionService) (*models.SubscriptionService, error) {
	svc.Name = strings.TrimSpace(svc.Name)
	if err := validateStruct(s.validate, svc); err != nil {
		return nil, err
	}
	if _, err := s.services.Create(ctx, &svc); err != nil {
		return nil, err
	}
	s.logger.Info("Service created", zap.String("serviceId", svc.ID), zap.String("name", svc.Name))
	return &svc, nil
}

func (s *catalogService) UpdateService(ctx context.Context, serviceID string, svc models.SubscriptionService) (*models.SubscriptionService, error) {
	svc.ID = serviceID
	svc.Name = strings.TrimSpace(svc.Name)
	if err := validateStruct(s.validate, svc); err != nil {
		return nil, err
	}
	if err := s.services.Update(ctx, &svc); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrServiceNotFound, serviceID)
		}
		return nil, err
	}
	return &svc, nil
}

func (s *catalogService) DeleteService(ctx context.Context, serviceID string) error {
	if _, err := s.GetService(ctx, serviceID); err != nil {
		return err
	}
	return s.services.Delete(ctx, serviceID)
}

func (s *catalogService) ListPlans(ctx context.Context, serviceID string) ([]*models.Plan, error) {
	return s.plans.ListByService(ctx, serviceID)
}

func (s *catalogService) ListSellerPlans(ctx context.Context, seller *models.User) ([]*models.Plan, error) {
	return s.plans.ListBySeller(ctx, seller.ID)
}

func (s *catalogService) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrPlanNotFound, planID)
		}
		return nil, err
	}
	return plan, nil
}

// ownedPlan loads a plan and checks the caller may manage it.
func (s *catalogService) ownedPlan(ctx context.Context, seller *models.User, planID string) (*models.Plan, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.SellerID != seller.ID && !seller.IsAdmin() {
		return nil, fmt.Errorf("%w: plan '%s' belongs to another seller", ErrForbidden, planID)
	}
	return plan, nil
}

func planFromRequest(req models.PlanRequest) models.Plan {
	return models.Plan{
		ServiceID:    req.ServiceID,
		Name:         strings.TrimSpace(req.Name),
		Price:        req.Price,
		Features:     req.Features,
		AccountModel: req.AccountModel,
		UserLimit:    req.UserLimit,
		Quality:      req.Quality,
		BannerURL:    req.BannerURL,
	}
}

func (s *catalogService) CreatePlan(ctx context.Context, seller *models.User, req models.PlanRequest) (*models.Plan, error) {
	if !seller.IsSeller() {
		return nil, ErrForbidden
	}
	plan := planFromRequest(req)
	plan.SellerID = seller.ID
	plan.SellerName = seller.DisplayName
	plan.CreatedAt = s.now().UTC()
	if err := validateStruct(s.validate, plan); err != nil {
		return nil, err
	}
	if _, err := s.GetService(ctx, plan.ServiceID); err != nil {
		return nil, err
	}
	if _, err := s.plans.Create(ctx, &plan); err != nil {
		return nil, err
	}
	s.logger.Info("Plan created", zap.String("planId", plan.ID), zap.String("sellerId", seller.ID))
	return &plan, nil
}

func (s *catalogService) UpdatePlan(ctx context.Context, seller *models.User, planID string, req models.PlanRequest) (*models.Plan, error) {
	existing, err := s.ownedPlan(ctx, seller, planID)
	if err != nil {
		return nil, err
	}
	plan := planFromRequest(req)
	plan.ID = planID
	plan.ServiceID = existing.ServiceID
	plan.SellerID = existing.SellerID
	plan.SellerName = existing.SellerName
	plan.Stock = existing.Stock
	plan.CreatedAt = existing.CreatedAt
	if err := validateStruct(s.validate, plan); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *catalogService) DeletePlan(ctx context.Context, seller *models.User, planID string) error {
	if _, err := s.ownedPlan(ctx, seller, planID); err != nil {
		return err
	}
	return s.plans.Delete(ctx, planID)
}

// AddDeliverables seals each content entry and adds it as stock.
func (s *catalogService) AddDeliverables(ctx context.Context, seller *models.User, planID string, contents []string) ([]string, error) {
	if _, err := s.ownedPlan(ctx, seller, planID); err != nil {
		return nil, err
	}
	sealed := make([]string, 0, len(contents))
	for _, c := range contents {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("%w: deliverable content cannot be empty", ErrValidation)
		}
		enc, err := s.sealer.Seal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to seal deliverable: %w", err)
		}
		sealed = append(sealed, enc)
	}
	ids, err := s.deliverables.Add(ctx, planID, sealed, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Stock added", zap.String("planId", planID), zap.Int("count", len(ids)))
	return ids, nil
}

// ListDeliverables shows stock. Content is opened only for the plan owner.
func (s *catalogService) ListDeliverables(ctx context.Context, seller *models.User, planID string) ([]*models.Deliverable, error) {
	plan, err := s.ownedPlan(ctx, seller, planID)
	if err != nil {
		return nil, err
	}
	items, err := s.deliverables.List(ctx, planID)
	if err != nil {
		return nil, err
	}
	owner := plan.SellerID == seller.ID
	for _, d := range items {
		if !owner {
			d.Content = redactedContent
			continue
		}
		plain, err := s.sealer.Open(d.Content)
		if err != nil {
			s.logger.Error("Failed to open deliverable", zap.String("deliverableId", d.ID), zap.Error(err))
			d.Content = redactedContent
			continue
		}
		d.Content = plain
	}
	return items, nil
}

func (s *catalogService) DeleteDeliverable(ctx context.Context, seller *models.User, planID, deliverableID string) error {
	if _, err := s.ownedPlan(ctx, seller, planID); err != nil {
		return err
	}
	err := s.deliverables.DeleteAvailable(ctx, planID, deliverableID)
	switch {
	case errors.Is(err, db.ErrConflict):
		return ErrDeliverableSold
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: '%s'", ErrDeliverableNotFound, deliverableID)
	}
	return err
}
