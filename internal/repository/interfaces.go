package repository

import (
	"context"
	"time"

	"github.com/jeromwolf/FluxNews/internal/model"
)

// ArticleRepository persists ingested articles and their impact scores.
type ArticleRepository interface {
	CreateBatch(ctx context.Context, articles []*model.Article) (int, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Get(ctx context.Context, id string) (*model.Article, error)
	SaveImpactScores(ctx context.Context, scores []*model.ImpactScore) error
}

// CompanyRepository is the read-only company graph.
type CompanyRepository interface {
	All(ctx context.Context) ([]*model.Company, error)
	RelationshipBetween(ctx context.Context, companyA, companyB int64) (model.RelationshipType, error)
	RelatedCompanies(ctx context.Context, companyID int64) ([]*model.CompanyRelation, error)
	Watchers(ctx context.Context, companyID int64) ([]string, error)
}

// NotificationRepository durably stores notifications so unsent ones
// survive a restart.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkRead(ctx context.Context, userID string, ids []string, readAt time.Time) error
	ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	// DeleteOlderThan removes delivered notifications created before the
	// cutoff. Unsent rows are never deleted; ListPending must still be
	// able to recover them after a restart.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository resolves user contact details for the email channel.
type UserRepository interface {
	Email(ctx context.Context, userID string) (string, error)
}

// SettingsRepository stores per-user notification settings as full-record
// replacements.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*model.NotificationSettings, error)
	Upsert(ctx context.Context, settings *model.NotificationSettings) error
}
