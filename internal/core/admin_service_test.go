package core

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/models"
)

func newAdminFixture() (*adminService, *fakeConfigs, *fakeUsers) {
	configs := &fakeConfigs{}
	users := newFakeUsers(&models.User{ID: "u1", Role: models.RoleCustomer})
	svc := NewAdminService(users, &fakeCoupons{coupons: map[string]*models.Coupon{}}, configs, plainSealer{}, zap.NewNop()).(*adminService)
	return svc, configs, users
}

func TestCreateCoupon(t *testing.T) {
	svc, _, _ := newAdminFixture()
	ctx := context.Background()

	c, err := svc.CreateCoupon(ctx, models.CouponRequest{Code: "promo10", DiscountPercentage: 10})
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if c.Code != "PROMO10" {
		t.Fatalf("code = %q", c.Code)
	}
	if _, err := svc.CreateCoupon(ctx, models.CouponRequest{Code: "PROMO10", DiscountPercentage: 20}); !errors.Is(err, ErrCouponExists) {
		t.Fatalf("duplicate err = %v", err)
	}

	invalid := []models.CouponRequest{
		{Code: "A!", DiscountPercentage: 10},
		{Code: "HALF", DiscountPercentage: 0},
		{Code: "TOOMUCH", DiscountPercentage: 101},
	}
	for _, req := range invalid {
		if _, err := svc.CreateCoupon(ctx, req); !errors.Is(err, ErrValidation) {
			t.Errorf("%+v: err = %v", req, err)
		}
	}
}

func TestSetRole(t *testing.T) {
	svc, _, users := newAdminFixture()
	ctx := context.Background()

	if err := svc.SetRole(ctx, "u1", models.RoleSeller); err != nil {
		t.Fatal(err)
	}
	if u, _ := users.GetByID(ctx, "u1"); u.Role != models.RoleSeller {
		t.Fatalf("role = %s", u.Role)
	}
	if err := svc.SetRole(ctx, "u1", "owner"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad role err = %v", err)
	}
	if err := svc.SetRole(ctx, "ghost", models.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestConfigTokensAreMasked(t *testing.T) {
	svc, configs, _ := newAdminFixture()
	ctx := context.Background()

	out, err := svc.PutConfig(ctx, models.ConfigPayment, []byte(`{"provider":"pushinpay","apiToken":"secret-token-1234","enabled":true}`))
	if err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
	if configs.payment.APIToken != "sealed:secret-token-1234" {
		t.Fatalf("stored token = %q", configs.payment.APIToken)
	}
	if got := out.(*models.PaymentConfig).APIToken; got != "********1234" {
		t.Fatalf("returned token = %q", got)
	}

	// Saving the masked value back keeps the stored secret.
	if _, err := svc.PutConfig(ctx, models.ConfigPayment, []byte(`{"provider":"pushinpay","apiToken":"********1234","enabled":false}`)); err != nil {
		t.Fatal(err)
	}
	if configs.payment.APIToken != "sealed:secret-token-1234" || configs.payment.Enabled {
		t.Fatalf("payment = %+v", configs.payment)
	}

	if _, err := svc.GetConfig(ctx, "billing"); !errors.Is(err, ErrUnknownConfig) {
		t.Fatalf("unknown doc err = %v", err)
	}
	if _, err := svc.PutConfig(ctx, models.ConfigWhatsapp, []byte(`{`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad json err = %v", err)
	}
}

func TestPutSpecialCoupons(t *testing.T) {
	svc, configs, _ := newAdminFixture()
	ctx := context.Background()

	if _, err := svc.PutConfig(ctx, models.ConfigSpecialCoupons, []byte(`{"enabled":true,"coupons":[{"code":"black50","discountPercentage":50}]}`)); err != nil {
		t.Fatal(err)
	}
	if configs.special.Coupons[0].Code != "BLACK50" {
		t.Fatalf("coupons = %+v", configs.special.Coupons)
	}
	if _, err := svc.PutConfig(ctx, models.ConfigSpecialCoupons, []byte(`{"enabled":true,"coupons":[{"code":"x","discountPercentage":50}]}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad code err = %v", err)
	}
}
