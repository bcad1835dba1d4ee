package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/models"
)

// WhatsappToken resolves the gateway credential for user: the user's own
// token when set, otherwise the shared one from configs/whatsapp.
func WhatsappToken(ctx context.Context, configs db.ConfigRepository, sealer Sealer, user *models.User) (string, error) {
	if user != nil && user.WhatsappAPIToken != "" {
		return sealer.Open(user.WhatsappAPIToken)
	}
	cfg, err := configs.Whatsapp(ctx)
	if err != nil {
		return "", err
	}
	if cfg.APIToken == "" {
		return "", ErrWhatsappNotConfigured
	}
	return sealer.Open(cfg.APIToken)
}

type whatsappService struct {
	gateway        WhatsappGateway
	configs        db.ConfigRepository
	sealer         Sealer
	connectTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// NewWhatsappService creates the admin-facing gateway service.
func NewWhatsappService(gateway WhatsappGateway, configs db.ConfigRepository, sealer Sealer, connectTimeout time.Duration, logger *zap.Logger) WhatsappService {
	return &whatsappService{
		gateway:        gateway,
		configs:        configs,
		sealer:         sealer,
		connectTimeout: connectTimeout,
		pollInterval:   3 * time.Second,
		logger:         logger,
	}
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, whatsapp.ErrNotConfigured):
		return ErrWhatsappNotConfigured
	case errors.Is(err, whatsapp.ErrGateway):
		return fmt.Errorf("%w: %v", ErrWhatsappGateway, err)
	}
	return err
}

func (s *whatsappService) Status(ctx context.Context, admin *models.User) (*whatsapp.InstanceStatus, error) {
	token, err := WhatsappToken(ctx, s.configs, s.sealer, admin)
	if err != nil {
		return nil, err
	}
	st, err := s.gateway.InstanceStatus(ctx, token)
	if err != nil {
		return nil, gatewayError(err)
	}
	return st, nil
}

func (s *whatsappService) Connect(ctx context.Context, admin *models.User) (string, error) {
	token, err := WhatsappToken(ctx, s.configs, s.sealer, admin)
	if err != nil {
		return "", err
	}
	qr, err := s.gateway.Connect(ctx, token)
	if err != nil {
		return "", gatewayError(err)
	}
	return qr, nil
}

// AwaitConnection polls the instance until it reports connected or the
// connect timeout passes.
func (s *whatsappService) AwaitConnection(ctx context.Context, admin *models.User) (*whatsapp.InstanceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		st, err := s.Status(ctx, admin)
		if err == nil && st.Connected() {
			return st, nil
		}
		if err != nil && !errors.Is(err, ErrWhatsappGateway) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ErrConnectTimeout
		case <-ticker.C:
		}
	}
}
