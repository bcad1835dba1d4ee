package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
)

type adminService struct {
	users    db.UserRepository
	coupons  db.CouponRepository
	configs  db.ConfigRepository
	sealer   Sealer
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminService creates an AdminService.
func NewAdminService(users db.UserRepository, coupons db.CouponRepository, configs db.ConfigRepository, sealer Sealer, logger *zap.Logger) AdminService {
	return &adminService{
		users:    users,
		coupons:  coupons,
		configs:  configs,
		sealer:   sealer,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *adminService) CreateCoupon(ctx context.Context, req models.CouponRequest) (*models.Coupon, error) {
	coupon := &models.Coupon{
		Code:               NormalizeCouponCode(req.Code),
		DiscountPercentage: req.DiscountPercentage,
		UsageLimit:         req.UsageLimit,
		CreatedAt:          s.now().UTC(),
	}
	if err := validateStruct(s.validate, coupon); err != nil {
		return nil, err
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: '%s'", ErrCouponExists, coupon.Code)
		}
		return nil, err
	}
	s.logger.Info("Coupon created", zap.String("code", coupon.Code), zap.Float64("discount", coupon.DiscountPercentage))
	return coupon, nil
}

func (s *adminService) ListCoupons(ctx context.Context) ([]*models.Coupon, error) {
	return s.coupons.List(ctx)
}

func (s *adminService) DeleteCoupon(ctx context.Context, code string) error {
	return s.coupons.Delete(ctx, NormalizeCouponCode(code))
}

func (s *adminService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx)
}

func (s *adminService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role '%s'", ErrValidation, role)
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"role": role}); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return err
	}
	s.logger.Info("Role changed", zap.String("userId", userID), zap.String("role", string(role)))
	return nil
}

// DeleteUser removes the profile only. The authentication record persists and
// the user gets a fresh customer profile on next login.
func (s *adminService) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return err
	}
	return s.users.Delete(ctx, userID)
}

// maskToken shows only the last four characters of a stored credential.
func maskToken(plain string) string {
	if plain == "" {
		return ""
	}
	if len(plain) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + plain[len(plain)-4:]
}

// isMasked reports whether a submitted token is the masked value echoed back.
func isMasked(token string) bool {
	return strings.HasPrefix(token, "****")
}

func (s *adminService) openMasked(sealed string) string {
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		s.logger.Error("Failed to open stored token", zap.Error(err))
		return "****"
	}
	return maskToken(plain)
}

// GetConfig returns a configuration document with credentials masked.
func (s *adminService) GetConfig(ctx context.Context, docID string) (interface{}, error) {
	switch docID {
	case models.ConfigPayment:
		cfg, err := s.configs.Payment(ctx)
		if err != nil {
			return nil, err
		}
		cfg.APIToken = s.openMasked(cfg.APIToken)
		return cfg, nil
	case models.ConfigWhatsapp:
		cfg, err := s.configs.Whatsapp(ctx)
		if err != nil {
			return nil, err
		}
		cfg.APIToken = s.openMasked(cfg.APIToken)
		return cfg, nil
	case models.ConfigSpecialCoupons:
		return s.configs.SpecialCoupons(ctx)
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUnknownConfig, docID)
}

// sealToken seals a newly submitted token. An empty or masked value keeps the
// currently stored one.
func (s *adminService) sealToken(submitted, current string) (string, error) {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" || isMasked(submitted) {
		return current, nil
	}
	return s.sealer.Seal(submitted)
}

// PutConfig replaces a configuration document from its JSON body.
func (s *adminService) PutConfig(ctx context.Context, docID string, raw []byte) (interface{}, error) {
	switch docID {
	case models.ConfigPayment:
		var cfg models.PaymentConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		current, err := s.configs.Payment(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.APIToken, err = s.sealToken(cfg.APIToken, current.APIToken); err != nil {
			return nil, err
		}
		if err := s.configs.Put(ctx, docID, cfg); err != nil {
			return nil, err
		}
	case models.ConfigWhatsapp:
		var cfg models.WhatsappConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		current, err := s.configs.Whatsapp(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.APIToken, err = s.sealToken(cfg.APIToken, current.APIToken); err != nil {
			return nil, err
		}
		if err := s.configs.Put(ctx, docID, cfg); err != nil {
			return nil, err
		}
	case models.ConfigSpecialCoupons:
		var cfg models.SpecialCouponsConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		for i := range cfg.Coupons {
			cfg.Coupons[i].Code = NormalizeCouponCode(cfg.Coupons[i].Code)
		}
		if err := validateStruct(s.validate, cfg); err != nil {
			return nil, err
		}
		if err := s.configs.Put(ctx, docID, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownConfig, docID)
	}
	s.logger.Info("Configuration updated", zap.String("doc", docID))
	return s.GetConfig(ctx, docID)
}
