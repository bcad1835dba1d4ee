// Package bootstrap wires the infrastructure shared by the server and the
// notifier binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/config"
	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/crypto"
	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/notifier"
	"github.com/example/subsmarket/pkg/cache"
	"github.com/example/subsmarket/pkg/database"
	"github.com/example/subsmarket/pkg/mailer"
	"github.com/example/subsmarket/pkg/messagequeue"
)

// LoadEnv reads a local .env file outside release mode. A missing file is
// not an error.
func LoadEnv(ginMode string) error {
	if ginMode == "release" {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the zap logger for appEnv.
func NewLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Repositories is every Firestore-backed store.
type Repositories struct {
	Users         db.UserRepository
	Services      db.ServiceRepository
	Plans         db.PlanRepository
	Deliverables  db.DeliverableRepository
	Coupons       db.CouponRepository
	Subscriptions db.SubscriptionRepository
	Tickets       db.TicketRepository
	Checkouts     db.CheckoutRepository
	Configs       db.ConfigRepository
	Notifications db.NotificationRepository
}

// Infra holds the long-lived clients of a binary.
type Infra struct {
	Config  *config.Config
	Clients *db.Clients
	Cache   cache.Cache
	Cipher  *crypto.Cipher
	Mailer  *mailer.Mailer
	Alerter core.Alerter
	Repos   Repositories

	closers []func() error
	logger  *zap.Logger
}

// New connects to Firebase and Redis and builds the repositories. When Redis
// is unreachable an in-process cache is used instead.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	clients, err := db.InitFirebase(initCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	in := &Infra{Config: cfg, Clients: clients, Cipher: cipher, logger: logger}
	in.closers = append(in.closers, clients.Close)

	redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		in.Cache = cache.NewMemoryCache()
	} else {
		in.Cache = redisCache
		in.closers = append(in.closers, redisCache.Close)
	}

	in.Mailer = mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.AlertEmailFrom,
	})
	if !cfg.AlertsEnabled() {
		logger.Warn("Operator e-mail alerts disabled, SMTP or ALERT_EMAIL_* not set")
	}
	in.Alerter = core.NewMailAlerter(in.Mailer, cfg.AlertEmailTo, logger)

	store := database.NewFirestoreServiceFromClient(clients.Firestore, logger)
	fs := clients.Firestore
	in.Repos = Repositories{
		Users:         db.NewFirestoreUserRepository(fs),
		Services:      db.NewServiceRepository(store),
		Plans:         db.NewFirestorePlanRepository(fs),
		Deliverables:  db.NewFirestoreDeliverableRepository(fs),
		Coupons:       db.NewFirestoreCouponRepository(fs),
		Subscriptions: db.NewFirestoreSubscriptionRepository(fs),
		Tickets:       db.NewFirestoreTicketRepository(fs),
		Checkouts:     db.NewFirestoreCheckoutRepository(fs),
		Configs:       db.NewConfigRepository(store, in.Cache, logger),
		Notifications: db.NewFirestoreNotificationRepository(fs),
	}
	return in, nil
}

// Close releases every client in reverse order of creation.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			in.logger.Warn("Error while closing client", zap.Error(err))
		}
	}
}

// NotifierConfig maps the environment settings to the worker retry policy.
func NotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		MaxAttempts:    cfg.NotifierMaxAttempts,
		BackoffInitial: cfg.NotifierBackoffInitial,
		BackoffMax:     cfg.NotifierBackoffMax,
		Lease:          cfg.NotifierLease,
		DLQName:        cfg.NotificationDLQName,
	}
}

// DialQueue connects to RabbitMQ. The returned queue is closed with the Infra.
func (in *Infra) DialQueue() (*messagequeue.RabbitMQService, error) {
	mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: in.Config.RabbitMQURL}, in.logger)
	if err != nil {
		return nil, err
	}
	in.closers = append(in.closers, mq.Close)
	return mq, nil
}

// NewWorker builds a notification worker sending through the WhatsApp
// gateway. Without RabbitMQ the worker runs with no dead-letter queue. An
// empty workerID gets a random one.
func (in *Infra) NewWorker(workerID string) *notifier.Worker {
	var dlq notifier.Publisher
	if mq, err := in.DialQueue(); err != nil {
		in.logger.Warn("RabbitMQ unavailable, exhausted notifications will only be alerted", zap.Error(err))
	} else {
		dlq = mq
	}
	cfg := NotifierConfig(in.Config)
	cfg.WorkerID = workerID
	sender := whatsapp.NewClient(in.Config.WhatsappAPIBaseURL)
	return notifier.NewWorker(in.Repos.Notifications, in.Repos.Configs, sender, in.Cipher, dlq, in.Alerter, cfg, in.logger)
}
