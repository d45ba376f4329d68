package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
	apperrors "github.com/jeromwolf/FluxNews/pkg/errors"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

const (
	pendingReloadLimit = DefaultCapacity
	maxMessageTitleLen = 100

	defaultRetentionSweep = time.Hour
)

// Service is the producer-side API: it persists notifications, admits
// them to the queue, and owns the dispatcher lifecycle. It is the
// pipeline's Notifier.
type Service struct {
	queue      *Queue
	dispatcher *Dispatcher
	registry   *Registry

	store     repository.NotificationRepository
	settings  repository.SettingsRepository
	companies repository.CompanyRepository

	retention      time.Duration
	retentionSweep time.Duration

	metrics *metrics.Metrics
	logger  *logger.Logger
}

type ServiceConfig struct {
	Queue      *Queue
	Dispatcher *Dispatcher
	Registry   *Registry
	Store      repository.NotificationRepository
	Settings   repository.SettingsRepository
	Companies  repository.CompanyRepository
	// Retention is how long delivered notifications are kept before the
	// periodic sweep deletes them. Zero disables the sweep.
	Retention      time.Duration
	RetentionSweep time.Duration
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
}

func NewService(cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	sweep := cfg.RetentionSweep
	if sweep <= 0 {
		sweep = defaultRetentionSweep
	}
	return &Service{
		queue:          cfg.Queue,
		dispatcher:     cfg.Dispatcher,
		registry:       cfg.Registry,
		store:          cfg.Store,
		settings:       cfg.Settings,
		companies:      cfg.Companies,
		retention:      cfg.Retention,
		retentionSweep: sweep,
		metrics:        cfg.Metrics,
		logger:         log,
	}
}

// Start reloads undelivered notifications from storage in creation
// order, then launches the registry keepalive and the dispatch loop.
func (s *Service) Start(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx, pendingReloadLimit)
	if err != nil {
		return fmt.Errorf("reloading pending notifications: %w", err)
	}
	requeued := 0
	for _, n := range pending {
		if s.queue.Enqueue(n) {
			requeued++
		}
	}
	if len(pending) > 0 {
		s.logger.Info("requeued pending notifications",
			"pending", len(pending), "requeued", requeued)
	}

	s.registry.Start(ctx)
	s.dispatcher.Start(ctx)
	if s.retention > 0 {
		go s.retentionLoop(ctx)
	}
	return nil
}

// retentionLoop periodically deletes delivered notifications older than
// the retention window. Unsent notifications are never touched.
func (s *Service) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.retentionSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.retention)
			deleted, err := s.CleanupOlderThan(ctx, cutoff)
			if err != nil {
				s.logger.Error(err, "notification retention sweep failed")
				continue
			}
			if deleted > 0 {
				s.logger.Info("retention sweep removed delivered notifications",
					"deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
			}
		}
	}
}

// Stop drains the dispatcher. Queued but undelivered notifications
// stay in storage and are reloaded on the next Start.
func (s *Service) Stop() {
	s.dispatcher.Stop()
}

// Notify persists the notification and admits it to the queue.
// Persist-then-enqueue: if the process dies after the write, the
// pending reload on restart recovers the notification.
func (s *Service) Notify(ctx context.Context, n *model.Notification) error {
	if n.UserID == "" {
		return apperrors.BadRequest("notification requires a user id", nil)
	}
	if _, err := model.ParseNotificationType(string(n.Type)); err != nil {
		return apperrors.BadRequest("invalid notification", err)
	}
	if _, err := model.ParseNotificationPriority(string(n.Priority)); err != nil {
		return apperrors.BadRequest("invalid notification", err)
	}

	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("persisting notification: %w", err)
	}
	if !s.queue.Enqueue(n) {
		return apperrors.PolicyRejected("notification queue is full")
	}
	return nil
}

// HighImpactNotification fans a high-impact score out to every watcher
// of the company whose personal threshold it clears.
func (s *Service) HighImpactNotification(ctx context.Context, article *model.Article, company *model.Company, impactScore float64) error {
	watchers, err := s.companies.Watchers(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("loading watchers for company %d: %w", company.ID, err)
	}

	notified := 0
	for _, userID := range watchers {
		settings, err := s.settings.Get(ctx, userID)
		if err != nil {
			s.logger.Error(err, "settings lookup failed", "user_id", userID)
			continue
		}
		if impactScore < settings.ImpactThreshold {
			continue
		}

		n := model.NewNotification(
			userID,
			model.NotificationHighImpactNews,
			model.PriorityHigh,
			fmt.Sprintf("%s market-moving news", company.Name),
			fmt.Sprintf("Impact %.0f%%: %s", impactScore*100, truncate(article.Title, maxMessageTitleLen)),
		)
		n.ArticleID = article.ID
		n.CompanyID = company.ID
		n.Data["impact_score"] = impactScore
		n.Data["article_url"] = article.URL
		n.Data["company_ticker"] = company.Ticker

		if err := s.Notify(ctx, n); err != nil {
			s.logger.Error(err, "high impact notify failed",
				"user_id", userID, "company_id", company.ID)
			continue
		}
		notified++
	}

	s.logger.Debug("high impact fan-out",
		"company", company.Name, "watchers", len(watchers), "notified", notified)
	return nil
}

// SentimentAlert notifies watchers when a company's sentiment moves by
// more than their configured threshold.
func (s *Service) SentimentAlert(ctx context.Context, company *model.Company, oldScore, newScore float64) error {
	watchers, err := s.companies.Watchers(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("loading watchers for company %d: %w", company.ID, err)
	}

	change := newScore - oldScore
	magnitude := change
	if magnitude < 0 {
		magnitude = -magnitude
	}
	direction := "improved"
	if change < 0 {
		direction = "deteriorated"
	}

	for _, userID := range watchers {
		settings, err := s.settings.Get(ctx, userID)
		if err != nil {
			s.logger.Error(err, "settings lookup failed", "user_id", userID)
			continue
		}
		if magnitude < settings.SentimentChangeThreshold {
			continue
		}

		n := model.NewNotification(
			userID,
			model.NotificationSentimentAlert,
			model.PriorityMedium,
			fmt.Sprintf("%s sentiment %s", company.Name, direction),
			fmt.Sprintf("Sentiment moved from %.2f to %.2f", oldScore, newScore),
		)
		n.CompanyID = company.ID
		n.Data["old_score"] = oldScore
		n.Data["new_score"] = newScore
		n.Data["company_ticker"] = company.Ticker

		if err := s.Notify(ctx, n); err != nil {
			s.logger.Error(err, "sentiment alert failed", "user_id", userID)
		}
	}
	return nil
}

// Notifications lists stored notifications for the user, newest first.
func (s *Service) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	return s.store.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks the given notifications read, scoped to the user.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.MarkRead(ctx, userID, ids, time.Now().UTC())
}

// Settings returns the user's delivery policy, defaults included.
func (s *Service) Settings(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	return s.settings.Get(ctx, userID)
}

// UpdateSettings merges the patch into the stored settings and
// invalidates the dispatcher's cache so the change applies immediately.
func (s *Service) UpdateSettings(ctx context.Context, userID string, patch model.SettingsPatch) (*model.NotificationSettings, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", userID, err)
	}
	settings.Apply(patch)
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("saving settings for %s: %w", userID, err)
	}
	s.dispatcher.InvalidateSettings(userID)
	return settings, nil
}

// CleanupOlderThan deletes delivered notifications created before the
// cutoff. Unsent notifications survive so the pending reload can still
// recover them.
func (s *Service) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.store.DeleteOlderThan(ctx, cutoff)
}

// QueueStats exposes queue counters for the stats endpoint.
func (s *Service) QueueStats() Stats {
	return s.queue.Stats()
}

// RegistryStats exposes connection state for the stats endpoint.
func (s *Service) RegistryStats() RegistryStats {
	return s.registry.Stats()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
