package core

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/models"
)

func newCatalogFixture() (*catalogService, *fakeDeliverables) {
	services := &fakeServices{services: map[string]*models.SubscriptionService{"svc-1": {ID: "svc-1", Name: "StreamFlix"}}}
	plans := &fakePlans{plans: map[string]*models.Plan{}}
	deliverables := newFakeDeliverables()
	svc := NewCatalogService(services, plans, deliverables, plainSealer{}, zap.NewNop()).(*catalogService)
	return svc, deliverables
}

func validPlanRequest() models.PlanRequest {
	return models.PlanRequest{
		ServiceID:    "svc-1",
		Name:         " Premium ",
		Price:        30,
		AccountModel: models.AccountModelFullAccess,
		UserLimit:    4,
	}
}

func TestCreatePlan(t *testing.T) {
	svc, _ := newCatalogFixture()
	ctx := context.Background()
	seller := &models.User{ID: "seller", DisplayName: "Loja", Role: models.RoleSeller}

	plan, err := svc.CreatePlan(ctx, seller, validPlanRequest())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Name != "Premium" || plan.SellerID != "seller" || plan.SellerName != "Loja" || plan.ID == "" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	if _, err := svc.CreatePlan(ctx, &models.User{ID: "c", Role: models.RoleCustomer}, validPlanRequest()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer err = %v", err)
	}

	bad := validPlanRequest()
	bad.AccountModel = "Compartilhada"
	if _, err := svc.CreatePlan(ctx, seller, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad account model err = %v", err)
	}

	orphan := validPlanRequest()
	orphan.ServiceID = "svc-9"
	if _, err := svc.CreatePlan(ctx, seller, orphan); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("unknown service err = %v", err)
	}
}

func TestPlanOwnership(t *testing.T) {
	svc, _ := newCatalogFixture()
	ctx := context.Background()
	owner := &models.User{ID: "seller", Role: models.RoleSeller}
	plan, err := svc.CreatePlan(ctx, owner, validPlanRequest())
	if err != nil {
		t.Fatal(err)
	}

	other := &models.User{ID: "other", Role: models.RoleSeller}
	if _, err := svc.UpdatePlan(ctx, other, plan.ID, validPlanRequest()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update by other seller err = %v", err)
	}
	if err := svc.DeletePlan(ctx, other, plan.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete by other seller err = %v", err)
	}

	admin := &models.User{ID: "root", Role: models.RoleAdmin}
	req := validPlanRequest()
	req.Price = 25
	updated, err := svc.UpdatePlan(ctx, admin, plan.ID, req)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Price != 25 || updated.SellerID != "seller" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestDeliverablesAreSealedAndRedacted(t *testing.T) {
	svc, store := newCatalogFixture()
	ctx := context.Background()
	owner := &models.User{ID: "seller", Role: models.RoleSeller}
	plan, err := svc.CreatePlan(ctx, owner, validPlanRequest())
	if err != nil {
		t.Fatal(err)
	}

	ids, err := svc.AddDeliverables(ctx, owner, plan.ID, []string{" login:senha ", "outro"})
	if err != nil || len(ids) != 2 {
		t.Fatalf("AddDeliverables = %v, %v", ids, err)
	}
	raw, _ := store.List(ctx, plan.ID)
	if raw[0].Content != "sealed:login:senha" {
		t.Fatalf("stored content = %q", raw[0].Content)
	}

	items, err := svc.ListDeliverables(ctx, owner, plan.ID)
	if err != nil || items[0].Content != "login:senha" {
		t.Fatalf("owner list = %+v, %v", items, err)
	}
	items, err = svc.ListDeliverables(ctx, &models.User{ID: "root", Role: models.RoleAdmin}, plan.ID)
	if err != nil || items[0].Content != redactedContent {
		t.Fatalf("admin list = %+v, %v", items, err)
	}

	if _, err := svc.AddDeliverables(ctx, owner, plan.ID, []string{"ok", " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank content err = %v", err)
	}
}

func TestDeleteDeliverable(t *testing.T) {
	svc, store := newCatalogFixture()
	ctx := context.Background()
	owner := &models.User{ID: "seller", Role: models.RoleSeller}
	plan, _ := svc.CreatePlan(ctx, owner, validPlanRequest())
	ids, _ := svc.AddDeliverables(ctx, owner, plan.ID, []string{"a", "b"})

	if _, err := store.ClaimOldestAvailable(ctx, plan.ID, "buyer", svc.now()); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteDeliverable(ctx, owner, plan.ID, ids[0]); !errors.Is(err, ErrDeliverableSold) {
		t.Fatalf("sold err = %v", err)
	}
	if err := svc.DeleteDeliverable(ctx, owner, plan.ID, ids[1]); err != nil {
		t.Fatalf("available err = %v", err)
	}
	if err := svc.DeleteDeliverable(ctx, owner, plan.ID, "nope"); !errors.Is(err, ErrDeliverableNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}
