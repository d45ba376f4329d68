package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: base}
}

// notificationRow maps the notifications table; data and channels are
// stored as JSONB and decoded at this boundary, where unknown enum values
// are rejected.
type notificationRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Type       string         `db:"type"`
	Priority   string         `db:"priority"`
	Title      string         `db:"title"`
	Message    string         `db:"message"`
	Data       []byte         `db:"data"`
	ArticleID  sql.NullString `db:"article_id"`
	CompanyID  sql.NullInt64  `db:"company_id"`
	Channels   pq.StringArray `db:"channels"`
	RetryCount int            `db:"retry_count"`
	CreatedAt  time.Time      `db:"created_at"`
	SentAt     *time.Time     `db:"sent_at"`
	ReadAt     *time.Time     `db:"read_at"`
	ExpiresAt  *time.Time     `db:"expires_at"`
}

func (row *notificationRow) toModel() (*model.Notification, error) {
	typ, err := model.ParseNotificationType(row.Type)
	if err != nil {
		return nil, err
	}
	priority, err := model.ParseNotificationPriority(row.Priority)
	if err != nil {
		return nil, err
	}
	channels := make([]model.NotificationChannel, 0, len(row.Channels))
	for _, c := range row.Channels {
		ch, err := model.ParseNotificationChannel(c)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	data := map[string]any{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}

	return &model.Notification{
		ID:         row.ID,
		UserID:     row.UserID,
		Type:       typ,
		Priority:   priority,
		Title:      row.Title,
		Message:    row.Message,
		Data:       data,
		ArticleID:  row.ArticleID.String,
		CompanyID:  row.CompanyID.Int64,
		Channels:   channels,
		RetryCount: row.RetryCount,
		CreatedAt:  row.CreatedAt,
		SentAt:     row.SentAt,
		ReadAt:     row.ReadAt,
		ExpiresAt:  row.ExpiresAt,
	}, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}
	channels := make([]string, len(n.Channels))
	for i, c := range n.Channels {
		channels[i] = string(c)
	}

	query := `
		INSERT INTO notifications (
			id, user_id, type, priority, title, message, data,
			article_id, company_id, channels, retry_count,
			created_at, sent_at, read_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			NULLIF($8, ''), NULLIF($9, 0), $10, $11,
			$12, $13, $14, $15
		)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Type), string(n.Priority), n.Title, n.Message, data,
		n.ArticleID, n.CompanyID, pq.StringArray(channels), n.RetryCount,
		n.CreatedAt, n.SentAt, n.ReadAt, n.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET sent_at = $1 WHERE id = $2`, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, ids []string, readAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND id = ANY($3)`,
		readAt, userID, pq.StringArray(ids))
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// ListPending returns unsent, unexpired notifications in creation order
// for queue reload on restart.
func (r *notificationRepository) ListPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT * FROM notifications
		WHERE sent_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at ASC
		LIMIT $1`

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return r.decodeRows(rows)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder := psql.Select("*").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	if unreadOnly {
		builder = builder.Where(sq.Eq{"read_at": nil})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build notification query: %w", err)
	}

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return r.decodeRows(rows)
}

// DeleteOlderThan removes delivered notifications created before the
// cutoff. The sent_at guard keeps unsent rows intact for the pending
// reload on restart.
func (r *notificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE sent_at IS NOT NULL AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return res.RowsAffected()
}

// decodeRows skips rows that fail enum validation rather than failing the
// whole reload; a bad row is a data-quality problem, not a batch problem.
func (r *notificationRepository) decodeRows(rows []notificationRow) ([]*model.Notification, error) {
	out := make([]*model.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toModel()
		if err != nil {
			log.Warn().Err(err).
				Str("notification_id", rows[i].ID).
				Msg("skipping notification row that failed validation")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
