// Package notifier drains the pending_whatsapp_messages queue.
//
// An entry is deleted only after a successful send. Failed sends are retried
// with exponential backoff and, once MaxAttempts is reached, published to the
// dead-letter queue instead of being dropped after a single attempt.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
)

// Sender delivers one text message through the WhatsApp gateway.
type Sender interface {
	SendMessage(ctx context.Context, token, phone, text string) error
}

// Publisher is the dead-letter side of the message queue.
type Publisher interface {
	Publish(queueName string, body []byte) error
}

// Config is the retry policy of a worker.
type Config struct {
	WorkerID       string
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Lease          time.Duration
	DLQName        string
	SweepLimit     int
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		c.WorkerID = "notifier-" + uuid.NewString()[:8]
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 2 * time.Second
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = 50
	}
	return c
}

// Backoff returns the delay before retry number attempt (1-based):
// initial * 2^(attempt-1), capped at max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Worker sends queued notifications. Several workers may run against the
// same queue; the Firestore claim keeps each entry with one of them.
type Worker struct {
	queue   db.NotificationRepository
	configs db.ConfigRepository
	sender  Sender
	sealer  core.Sealer
	dlq     Publisher
	alerter core.Alerter
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	settings *models.WhatsappConfig
	jobs     chan string
}

// NewWorker creates a Worker. dlq may be nil, in which case exhausted entries
// are only alerted and deleted.
func NewWorker(queue db.NotificationRepository, configs db.ConfigRepository, sender Sender, sealer core.Sealer,
	dlq Publisher, alerter core.Alerter, cfg Config, logger *zap.Logger) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		queue:   queue,
		configs: configs,
		sender:  sender,
		sealer:  sealer,
		dlq:     dlq,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With(zap.String("workerId", cfg.WorkerID)),
		now:     time.Now,
		jobs:    make(chan string, 256),
	}
}

func (w *Worker) setSettings(s *models.WhatsappConfig) {
	w.mu.Lock()
	w.settings = s
	w.mu.Unlock()
}

func (w *Worker) currentSettings() *models.WhatsappConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.settings == nil {
		return &models.WhatsappConfig{}
	}
	return w.settings
}

// Run loads the templates, then processes the queue until ctx is cancelled.
// A failing listener stops Run and is returned.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings, err := w.configs.Whatsapp(ctx)
	if err != nil {
		return fmt.Errorf("failed to load whatsapp settings: %w", err)
	}
	w.setSettings(settings)
	w.logger.Info("Notifier started",
		zap.Int("maxAttempts", w.cfg.MaxAttempts),
		zap.Duration("backoffInitial", w.cfg.BackoffInitial),
		zap.Duration("lease", w.cfg.Lease))

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.configs.ListenWhatsapp(ctx, w.setSettings); err != nil {
			errs <- fmt.Errorf("whatsapp settings listener: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := w.queue.Listen(ctx, func(msg *models.PendingWhatsappMessage) {
			if msg.Claimable(w.now(), w.cfg.Lease) {
				w.schedule(ctx, msg.ID)
			}
		})
		if err != nil {
			errs <- fmt.Errorf("queue listener: %w", err)
		}
	}()

	ticker := time.NewTicker(w.cfg.BackoffInitial)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errs:
			runErr = err
			break loop
		case id := <-w.jobs:
			w.Process(ctx, id)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}

	cancel()
	wg.Wait()
	w.logger.Info("Notifier stopped")
	return runErr
}

func (w *Worker) schedule(ctx context.Context, id string) {
	select {
	case w.jobs <- id:
	case <-ctx.Done():
	}
}

// sweep picks up entries whose backoff elapsed or whose claim lease expired.
func (w *Worker) sweep(ctx context.Context) {
	due, err := w.queue.ListDue(ctx, w.now(), w.cfg.SweepLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("Queue sweep failed", zap.Error(err))
		}
		return
	}
	for _, msg := range due {
		if ctx.Err() != nil {
			return
		}
		if msg.Claimable(w.now(), w.cfg.Lease) {
			w.Process(ctx, msg.ID)
		}
	}
}

// Process claims and handles one queue entry.
func (w *Worker) Process(ctx context.Context, id string) {
	msg, ok, err := w.queue.Claim(ctx, id, w.cfg.WorkerID, w.now(), w.cfg.Lease)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) && ctx.Err() == nil {
			w.logger.Warn("Failed to claim notification", zap.String("id", id), zap.Error(err))
		}
		return
	}
	if !ok {
		return
	}
	log := w.logger.With(zap.String("id", msg.ID), zap.String("type", string(msg.Type)), zap.Int("attempts", msg.Attempts))

	settings := w.currentSettings()
	tpl := settings.Templates.For(msg.Type)
	if tpl == "" {
		log.Warn("No template for notification type, dropping")
		w.delete(ctx, msg.ID, log)
		return
	}

	if err := w.send(ctx, settings, msg, tpl); err != nil {
		w.fail(ctx, msg, err, log)
		return
	}
	log.Info("Notification sent")
	w.delete(ctx, msg.ID, log)
}

func (w *Worker) send(ctx context.Context, settings *models.WhatsappConfig, msg *models.PendingWhatsappMessage, tpl string) error {
	if settings.APIToken == "" {
		return core.ErrWhatsappNotConfigured
	}
	token, err := w.sealer.Open(settings.APIToken)
	if err != nil {
		return fmt.Errorf("failed to open whatsapp token: %w", err)
	}
	return w.sender.SendMessage(ctx, token, msg.To, core.RenderTemplate(tpl, msg.Data))
}

func (w *Worker) fail(ctx context.Context, msg *models.PendingWhatsappMessage, sendErr error, log *zap.Logger) {
	attempts := msg.Attempts + 1
	if attempts < w.cfg.MaxAttempts {
		next := w.now().Add(Backoff(attempts, w.cfg.BackoffInitial, w.cfg.BackoffMax))
		log.Warn("Notification send failed, retrying", zap.Time("nextAttemptAt", next), zap.Error(sendErr))
		if err := w.queue.Reschedule(ctx, msg.ID, attempts, next, sendErr.Error()); err != nil {
			log.Error("Failed to reschedule notification", zap.Error(err))
		}
		return
	}

	msg.Attempts = attempts
	msg.LastError = sendErr.Error()
	if err := w.deadLetter(msg); err != nil {
		// Keep the entry in Firestore so nothing is lost while the broker is down.
		log.Error("Failed to dead-letter notification, keeping it queued", zap.Error(err))
		if err := w.queue.Reschedule(ctx, msg.ID, attempts, w.now().Add(w.cfg.BackoffMax), sendErr.Error()); err != nil {
			log.Error("Failed to reschedule notification", zap.Error(err))
		}
		return
	}
	log.Error("Notification exhausted its attempts, moved to dead-letter queue", zap.Error(sendErr))
	w.alerter.Alert(ctx, "Notificação WhatsApp descartada",
		fmt.Sprintf("A notificação %s (%s) para %s falhou %d vezes e foi enviada para a fila %s.\nÚltimo erro: %v",
			msg.ID, msg.Type, msg.To, attempts, w.cfg.DLQName, sendErr))
	w.delete(ctx, msg.ID, log)
}

func (w *Worker) deadLetter(msg *models.PendingWhatsappMessage) error {
	if w.dlq == nil || w.cfg.DLQName == "" {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}
	return w.dlq.Publish(w.cfg.DLQName, body)
}

func (w *Worker) delete(ctx context.Context, id string, log *zap.Logger) {
	if err := w.queue.Delete(ctx, id); err != nil {
		log.Error("Failed to delete notification", zap.Error(err))
	}
}
