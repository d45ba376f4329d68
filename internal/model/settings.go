package model

// NotificationSettings is the per-user delivery policy, read by the
// dispatcher before every send. Writes are full-record replacements;
// callers merge partial updates in memory via Apply.
type NotificationSettings struct {
	UserID  string `db:"user_id" json:"user_id"`
	Enabled bool   `db:"enabled" json:"enabled"`

	TypeSettings    map[NotificationType]bool    `db:"-" json:"type_settings"`
	ChannelSettings map[NotificationChannel]bool `db:"-" json:"channel_settings"`

	// Thresholds are clamped to [0,1] on write.
	ImpactThreshold          float64 `db:"impact_threshold" json:"impact_threshold"`
	SentimentChangeThreshold float64 `db:"sentiment_change_threshold" json:"sentiment_change_threshold"`

	// Quiet hours are clamped to [0,23]; nil disables the window.
	QuietHoursStart *int `db:"quiet_hours_start" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *int `db:"quiet_hours_end" json:"quiet_hours_end,omitempty"`

	WatchlistCompanyIDs []int64 `db:"-" json:"watchlist_company_ids"`
}

// DefaultSettings enables every notification type on the realtime channels
// only, with a 0.7 impact threshold.
func DefaultSettings(userID string) *NotificationSettings {
	return &NotificationSettings{
		UserID:  userID,
		Enabled: true,
		TypeSettings: map[NotificationType]bool{
			NotificationHighImpactNews:  true,
			NotificationSentimentAlert:  true,
			NotificationWatchlistUpdate: true,
			NotificationMarketAlert:     true,
			NotificationSystem:          true,
		},
		ChannelSettings: map[NotificationChannel]bool{
			ChannelWebSocket: true,
			ChannelInApp:     true,
			ChannelEmail:     false,
			ChannelPush:      false,
		},
		ImpactThreshold:          0.7,
		SentimentChangeThreshold: 0.3,
	}
}

// Normalize clamps out-of-range values to their safe defaults. Called at
// the storage boundary so business logic never sees invalid settings.
func (s *NotificationSettings) Normalize() {
	s.ImpactThreshold = Clamp01(s.ImpactThreshold)
	s.SentimentChangeThreshold = Clamp01(s.SentimentChangeThreshold)
	s.QuietHoursStart = clampHour(s.QuietHoursStart)
	s.QuietHoursEnd = clampHour(s.QuietHoursEnd)
}

func clampHour(h *int) *int {
	if h == nil {
		return nil
	}
	v := *h
	if v < 0 {
		v = 0
	}
	if v > 23 {
		v = 23
	}
	return &v
}

// ShouldSend reports whether a notification of the given type may be
// delivered at the given hour. During quiet hours only high-impact news
// goes through.
func (s *NotificationSettings) ShouldSend(typ NotificationType, hour int) bool {
	if !s.Enabled {
		return false
	}
	if enabled, ok := s.TypeSettings[typ]; ok && !enabled {
		return false
	}
	if s.QuietHoursStart != nil && s.QuietHoursEnd != nil {
		if *s.QuietHoursStart <= hour && hour < *s.QuietHoursEnd {
			return typ == NotificationHighImpactNews
		}
	}
	return true
}

// ChannelEnabled reports whether the user accepts delivery on the channel.
func (s *NotificationSettings) ChannelEnabled(ch NotificationChannel) bool {
	return s.ChannelSettings[ch]
}

// SettingsPatch is an explicit partial update: only non-nil fields
// overwrite the stored record.
type SettingsPatch struct {
	Enabled                  *bool
	TypeSettings             map[NotificationType]bool
	ChannelSettings          map[NotificationChannel]bool
	ImpactThreshold          *float64
	SentimentChangeThreshold *float64
	QuietHoursStart          *int
	QuietHoursEnd            *int
}

// Apply merges the patch into the settings and re-normalizes.
func (s *NotificationSettings) Apply(p SettingsPatch) {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	for typ, enabled := range p.TypeSettings {
		s.TypeSettings[typ] = enabled
	}
	for ch, enabled := range p.ChannelSettings {
		s.ChannelSettings[ch] = enabled
	}
	if p.ImpactThreshold != nil {
		s.ImpactThreshold = *p.ImpactThreshold
	}
	if p.SentimentChangeThreshold != nil {
		s.SentimentChangeThreshold = *p.SentimentChangeThreshold
	}
	if p.QuietHoursStart != nil {
		s.QuietHoursStart = p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		s.QuietHoursEnd = p.QuietHoursEnd
	}
	s.Normalize()
}
