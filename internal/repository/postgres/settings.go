package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
)

type settingsRepository struct {
	*BaseRepository
}

func NewSettingsRepository(base *BaseRepository) repository.SettingsRepository {
	return &settingsRepository{BaseRepository: base}
}

type settingsRow struct {
	UserID                   string         `db:"user_id"`
	Enabled                  bool           `db:"enabled"`
	TypeSettings             []byte         `db:"type_settings"`
	ChannelSettings          []byte         `db:"channel_settings"`
	ImpactThreshold          float64        `db:"impact_threshold"`
	SentimentChangeThreshold float64        `db:"sentiment_change_threshold"`
	QuietHoursStart          *int           `db:"quiet_hours_start"`
	QuietHoursEnd            *int           `db:"quiet_hours_end"`
	WatchlistCompanyIDs      pq.Int64Array  `db:"watchlist_company_ids"`
}

// Get returns the user's settings, falling back to defaults when the user
// never saved any.
func (r *settingsRepository) Get(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	var row settingsRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM user_notification_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for %s: %w", userID, err)
	}

	settings := model.DefaultSettings(userID)
	settings.Enabled = row.Enabled
	settings.ImpactThreshold = row.ImpactThreshold
	settings.SentimentChangeThreshold = row.SentimentChangeThreshold
	settings.QuietHoursStart = row.QuietHoursStart
	settings.QuietHoursEnd = row.QuietHoursEnd
	settings.WatchlistCompanyIDs = row.WatchlistCompanyIDs

	// Stored enum keys are validated here so business logic never sees an
	// unknown type or channel.
	var types map[string]bool
	if len(row.TypeSettings) > 0 {
		if err := json.Unmarshal(row.TypeSettings, &types); err != nil {
			return nil, fmt.Errorf("failed to decode type settings: %w", err)
		}
		for k, v := range types {
			typ, err := model.ParseNotificationType(k)
			if err != nil {
				continue
			}
			settings.TypeSettings[typ] = v
		}
	}
	var channels map[string]bool
	if len(row.ChannelSettings) > 0 {
		if err := json.Unmarshal(row.ChannelSettings, &channels); err != nil {
			return nil, fmt.Errorf("failed to decode channel settings: %w", err)
		}
		for k, v := range channels {
			ch, err := model.ParseNotificationChannel(k)
			if err != nil {
				continue
			}
			settings.ChannelSettings[ch] = v
		}
	}

	settings.Normalize()
	return settings, nil
}

// Upsert replaces the full settings record. Partial updates are merged in
// memory by callers via SettingsPatch before reaching this layer.
func (r *settingsRepository) Upsert(ctx context.Context, settings *model.NotificationSettings) error {
	settings.Normalize()

	types := make(map[string]bool, len(settings.TypeSettings))
	for k, v := range settings.TypeSettings {
		types[string(k)] = v
	}
	channels := make(map[string]bool, len(settings.ChannelSettings))
	for k, v := range settings.ChannelSettings {
		channels[string(k)] = v
	}
	typesJSON, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("failed to encode type settings: %w", err)
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("failed to encode channel settings: %w", err)
	}

	query := `
		INSERT INTO user_notification_settings (
			user_id, enabled, type_settings, channel_settings,
			impact_threshold, sentiment_change_threshold,
			quiet_hours_start, quiet_hours_end, watchlist_company_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			type_settings = EXCLUDED.type_settings,
			channel_settings = EXCLUDED.channel_settings,
			impact_threshold = EXCLUDED.impact_threshold,
			sentiment_change_threshold = EXCLUDED.sentiment_change_threshold,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			watchlist_company_ids = EXCLUDED.watchlist_company_ids`

	_, err = r.db.ExecContext(ctx, query,
		settings.UserID, settings.Enabled, typesJSON, channelsJSON,
		settings.ImpactThreshold, settings.SentimentChangeThreshold,
		settings.QuietHoursStart, settings.QuietHoursEnd,
		pq.Int64Array(settings.WatchlistCompanyIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}
