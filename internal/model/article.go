package model

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Article is the unit of ingestion. Collectors create it, the deduplicator
// may merge it with near-duplicates, and it is immutable downstream.
type Article struct {
	ID             string    `db:"id" json:"id"`
	URL            string    `db:"url" json:"url"`
	Title          string    `db:"title" json:"title"`
	Body           string    `db:"body" json:"body"`
	Summary        string    `db:"summary" json:"summary"`
	Source         string    `db:"source" json:"source"`
	PublishedAt    time.Time `db:"published_at" json:"published_at"`
	Language       string    `db:"language" json:"language"`
	MergedSources  []string  `db:"-" json:"merged_sources,omitempty"`
	DuplicateCount int       `db:"duplicate_count" json:"duplicate_count"`
	CollectedAt    time.Time `db:"collected_at" json:"collected_at"`
}

// ArticleID derives a stable identifier from URL and title so the same
// story collected twice maps to the same record.
func ArticleID(url, title string) string {
	sum := md5.Sum([]byte(url + title))
	return hex.EncodeToString(sum[:])
}

// Content returns the best available text for the article, preferring the
// full body over the feed summary.
func (a *Article) Content() string {
	if a.Body != "" {
		return a.Body
	}
	return a.Summary
}
