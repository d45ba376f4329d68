package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/messaging"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

const (
	idleSleep           = 100 * time.Millisecond
	notificationsTopic  = "notifications"
	defaultSettingsTTL  = 5 * time.Minute
	settingsSweepPeriod = 10 * time.Minute
)

// EmailSender delivers a notification over email. Implemented by the
// email package; nil disables the channel.
type EmailSender interface {
	SendNotification(ctx context.Context, userID string, n *model.Notification) error
}

// settingsCache fronts the settings repository with a TTL cache so the
// dispatch loop does not hit the database on every delivery.
type settingsCache struct {
	repo  repository.SettingsRepository
	cache *gocache.Cache
}

func newSettingsCache(repo repository.SettingsRepository, ttl time.Duration) *settingsCache {
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	return &settingsCache{
		repo:  repo,
		cache: gocache.New(ttl, settingsSweepPeriod),
	}
}

func (c *settingsCache) Get(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	if cached, ok := c.cache.Get(userID); ok {
		return cached.(*model.NotificationSettings), nil
	}
	settings, err := c.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", userID, err)
	}
	c.cache.SetDefault(userID, settings)
	return settings, nil
}

func (c *settingsCache) Invalidate(userID string) {
	c.cache.Delete(userID)
}

// Dispatcher drains the queue and fans each notification out to its
// enabled channels. A single worker keeps per-user delivery ordered.
type Dispatcher struct {
	queue    *Queue
	registry *Registry
	store    repository.NotificationRepository
	settings *settingsCache
	broker   messaging.Broker
	email    EmailSender

	metrics *metrics.Metrics
	logger  *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type DispatcherConfig struct {
	Queue       *Queue
	Registry    *Registry
	Store       repository.NotificationRepository
	Settings    repository.SettingsRepository
	SettingsTTL time.Duration
	Broker      messaging.Broker
	Email       EmailSender
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	broker := cfg.Broker
	if broker == nil {
		broker = messaging.NopBroker{}
	}
	return &Dispatcher{
		queue:    cfg.Queue,
		registry: cfg.Registry,
		store:    cfg.Store,
		settings: newSettingsCache(cfg.Settings, cfg.SettingsTTL),
		broker:   broker,
		email:    cfg.Email,
		metrics:  cfg.Metrics,
		logger:   log,
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(ctx)
	}()
	d.logger.Info("notification dispatcher started")
}

// Stop halts the loop and waits for the in-flight delivery to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// InvalidateSettings drops the cached settings for the user so the next
// delivery reads fresh state.
func (d *Dispatcher) InvalidateSettings(userID string) {
	d.settings.Invalidate(userID)
}

func (d *Dispatcher) loop(ctx context.Context) {
	for {
		n := d.queue.Dequeue()
		if n == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}
		d.deliver(ctx, n)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) {
	var timer *prometheus.Timer
	if d.metrics != nil {
		timer = prometheus.NewTimer(d.metrics.DispatchLatency)
		defer timer.ObserveDuration()
	}

	now := time.Now()
	if n.Expired(now) {
		d.logger.Debug("dropping expired notification", "notification_id", n.ID)
		d.queue.MarkDropped(n.ID)
		return
	}

	settings, err := d.settings.Get(ctx, n.UserID)
	if err != nil {
		d.logger.Error(err, "settings lookup failed", "notification_id", n.ID)
		d.queue.MarkFailed(n, true)
		return
	}

	if !settings.ShouldSend(n.Type, now.UTC().Hour()) {
		// Suppressed by user policy, not a failure. The record is
		// marked sent so it does not resurrect on restart.
		d.finishSent(ctx, n, now)
		return
	}

	var delivered []model.NotificationChannel
	for _, ch := range n.Channels {
		if !settings.ChannelEnabled(ch) {
			continue
		}
		if d.sendOn(ctx, ch, n) {
			delivered = append(delivered, ch)
			if d.metrics != nil {
				d.metrics.NotificationsSent.WithLabelValues(string(ch)).Inc()
			}
		}
	}

	if len(delivered) == 0 {
		d.queue.MarkFailed(n, true)
		return
	}
	d.finishSent(ctx, n, now)
}

func (d *Dispatcher) finishSent(ctx context.Context, n *model.Notification, now time.Time) {
	n.MarkSent(now)
	if err := d.store.MarkSent(ctx, n.ID, *n.SentAt); err != nil {
		d.logger.Error(err, "persisting sent_at", "notification_id", n.ID)
	}
	d.queue.MarkSent(n.ID)
}

func (d *Dispatcher) sendOn(ctx context.Context, ch model.NotificationChannel, n *model.Notification) bool {
	switch ch {
	case model.ChannelWebSocket:
		return d.registry.Send(n.UserID, wsEnvelope(n))

	case model.ChannelInApp:
		// The record was persisted at creation, so in-app delivery is
		// a fan-out event only. Publish failures are logged but the
		// channel still counts as delivered: the store already holds
		// the notification.
		if payload, err := json.Marshal(n); err == nil {
			if err := d.broker.Publish(ctx, notificationsTopic, payload); err != nil {
				d.logger.Warn("publish failed", "notification_id", n.ID, "error", err.Error())
			}
		}
		return true

	case model.ChannelEmail:
		if d.email == nil {
			return false
		}
		if err := d.email.SendNotification(ctx, n.UserID, n); err != nil {
			d.logger.Error(err, "email delivery failed", "notification_id", n.ID)
			return false
		}
		return true

	default:
		// push is accepted in settings but has no transport yet.
		return false
	}
}

// wsEnvelope is the frame format live clients consume.
func wsEnvelope(n *model.Notification) map[string]any {
	return map[string]any{
		"type":         "notification",
		"notification": n,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
}
