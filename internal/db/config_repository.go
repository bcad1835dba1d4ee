package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/cache"
	"github.com/example/subsmarket/pkg/database"
)

const configCacheTTL = 30 * time.Second

// configRepository reads configs/* through a short-lived cache. Writes go to
// Firestore and drop the cached copy.
type configRepository struct {
	store  database.FirestoreDB
	cache  cache.Cache
	logger *zap.Logger
}

// NewConfigRepository creates a ConfigRepository. cache may be nil.
func NewConfigRepository(store database.FirestoreDB, c cache.Cache, logger *zap.Logger) ConfigRepository {
	return &configRepository{store: store, cache: c, logger: logger}
}

func cacheKey(docID string) string { return "configs:" + docID }

// load decodes configs/{docID} into dst. A missing document leaves dst at its
// zero value and is not an error.
func (r *configRepository) load(ctx context.Context, docID string, dst interface{}) error {
	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, cacheKey(docID)); err == nil && ok {
			if err := json.Unmarshal([]byte(raw), dst); err == nil {
				return nil
			}
		}
	}

	err := r.store.Get(ctx, configsCollection, docID, dst)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to read config '%s': %w", docID, err)
	}

	if r.cache != nil {
		if raw, err := json.Marshal(dst); err == nil {
			if err := r.cache.Set(ctx, cacheKey(docID), string(raw), configCacheTTL); err != nil {
				r.logger.Debug("Config cache write failed", zap.String("doc", docID), zap.Error(err))
			}
		}
	}
	return nil
}

func (r *configRepository) Payment(ctx context.Context) (*models.PaymentConfig, error) {
	var cfg models.PaymentConfig
	if err := r.load(ctx, models.ConfigPayment, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) Whatsapp(ctx context.Context) (*models.WhatsappConfig, error) {
	var cfg models.WhatsappConfig
	if err := r.load(ctx, models.ConfigWhatsapp, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) SpecialCoupons(ctx context.Context) (*models.SpecialCouponsConfig, error) {
	var cfg models.SpecialCouponsConfig
	if err := r.load(ctx, models.ConfigSpecialCoupons, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Put overwrites configs/{docID}.
func (r *configRepository) Put(ctx context.Context, docID string, value interface{}) error {
	if err := r.store.Set(ctx, configsCollection, docID, value); err != nil {
		return fmt.Errorf("failed to write config '%s': %w", docID, err)
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, cacheKey(docID)); err != nil {
			r.logger.Warn("Config cache invalidation failed", zap.String("doc", docID), zap.Error(err))
		}
	}
	return nil
}

func (r *configRepository) ListenWhatsapp(ctx context.Context, fn func(*models.WhatsappConfig)) error {
	return r.store.Listen(ctx, configsCollection, models.ConfigWhatsapp, func(doc database.Document, exists bool) {
		cfg := &models.WhatsappConfig{}
		if exists {
			if err := doc.DataTo(cfg); err != nil {
				r.logger.Error("Failed to decode whatsapp config snapshot", zap.Error(err))
				return
			}
		}
		fn(cfg)
	})
}
