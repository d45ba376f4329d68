package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationHighImpactNews  NotificationType = "high_impact_news"
	NotificationSentimentAlert  NotificationType = "sentiment_alert"
	NotificationPriceMovement   NotificationType = "price_movement"
	NotificationWatchlistUpdate NotificationType = "watchlist_update"
	NotificationMarketAlert     NotificationType = "market_alert"
	NotificationSystem          NotificationType = "system"
)

func ParseNotificationType(s string) (NotificationType, error) {
	switch NotificationType(s) {
	case NotificationHighImpactNews, NotificationSentimentAlert,
		NotificationPriceMovement, NotificationWatchlistUpdate,
		NotificationMarketAlert, NotificationSystem:
		return NotificationType(s), nil
	}
	return "", fmt.Errorf("unknown notification type: %q", s)
}

type NotificationPriority string

const (
	PriorityCritical NotificationPriority = "critical"
	PriorityHigh     NotificationPriority = "high"
	PriorityMedium   NotificationPriority = "medium"
	PriorityLow      NotificationPriority = "low"
)

// Priorities lists every priority from most to least urgent. Queue drain
// order depends on this ordering.
var Priorities = []NotificationPriority{
	PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow,
}

func ParseNotificationPriority(s string) (NotificationPriority, error) {
	switch NotificationPriority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return NotificationPriority(s), nil
	}
	return "", fmt.Errorf("unknown notification priority: %q", s)
}

type NotificationChannel string

const (
	ChannelWebSocket NotificationChannel = "websocket"
	ChannelEmail     NotificationChannel = "email"
	ChannelPush      NotificationChannel = "push"
	ChannelInApp     NotificationChannel = "in_app"
)

func ParseNotificationChannel(s string) (NotificationChannel, error) {
	switch NotificationChannel(s) {
	case ChannelWebSocket, ChannelEmail, ChannelPush, ChannelInApp:
		return NotificationChannel(s), nil
	}
	return "", fmt.Errorf("unknown notification channel: %q", s)
}

// Notification is owned by the queue until delivered; afterwards the
// persistent store owns it for read/unread tracking.
type Notification struct {
	ID       string               `db:"id" json:"id"`
	UserID   string               `db:"user_id" json:"user_id"`
	Type     NotificationType     `db:"type" json:"type"`
	Priority NotificationPriority `db:"priority" json:"priority"`

	Title   string         `db:"title" json:"title"`
	Message string         `db:"message" json:"message"`
	Data    map[string]any `db:"-" json:"data,omitempty"`

	ArticleID string `db:"article_id" json:"article_id,omitempty"`
	CompanyID int64  `db:"company_id" json:"company_id,omitempty"`

	Channels []NotificationChannel `db:"-" json:"channels"`

	RetryCount int `db:"retry_count" json:"retry_count"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// NewNotification fills in identity and defaults. The default channels are
// the realtime ones; email and push are opt-in through settings.
func NewNotification(userID string, typ NotificationType, priority NotificationPriority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Data:      map[string]any{},
		Channels:  []NotificationChannel{ChannelWebSocket, ChannelInApp},
		CreatedAt: time.Now().UTC(),
	}
}

// Expired reports whether the notification passed its expiry before being
// delivered. Expired notifications must never be sent.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

func (n *Notification) MarkSent(now time.Time) {
	t := now.UTC()
	n.SentAt = &t
}
