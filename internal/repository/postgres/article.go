package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
)

type articleRepository struct {
	*BaseRepository
}

func NewArticleRepository(base *BaseRepository) repository.ArticleRepository {
	return &articleRepository{BaseRepository: base}
}

// CreateBatch inserts articles one statement at a time inside a single
// transaction, skipping conflicts; a malformed row never aborts the batch.
func (r *articleRepository) CreateBatch(ctx context.Context, articles []*model.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	saved := 0
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO news_articles (
				id, url, title, body, summary, source, published_at,
				language, merged_sources, duplicate_count, collected_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`
		for _, a := range articles {
			res, err := tx.ExecContext(ctx, query,
				a.ID, a.URL, a.Title, a.Body, a.Summary, a.Source, a.PublishedAt,
				a.Language, pq.StringArray(a.MergedSources), a.DuplicateCount, a.CollectedAt)
			if err != nil {
				return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				saved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

func (r *articleRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.SelectContext(ctx, &found,
		`SELECT id FROM news_articles WHERE id = ANY($1)`, pq.StringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing articles: %w", err)
	}
	out := make(map[string]bool, len(found))
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *articleRepository) Get(ctx context.Context, id string) (*model.Article, error) {
	var a model.Article
	err := r.db.GetContext(ctx, &a,
		`SELECT id, url, title, body, summary, source, published_at,
		        language, duplicate_count, collected_at
		 FROM news_articles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %s: %w", id, err)
	}
	return &a, nil
}

func (r *articleRepository) SaveImpactScores(ctx context.Context, scores []*model.ImpactScore) error {
	if len(scores) == 0 {
		return nil
	}
	query := `
		INSERT INTO news_company_impacts (
			article_id, company_id, base_score, sentiment_factor,
			relevance_factor, time_decay_factor, relationship_factor,
			final_score, confidence, impact_type, explanation, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, s := range scores {
			_, err := tx.ExecContext(ctx, query,
				s.ArticleID, s.CompanyID, s.BaseScore, s.SentimentFactor,
				s.RelevanceFactor, s.TimeDecayFactor, s.RelationshipFactor,
				s.FinalScore, s.Confidence, string(s.ImpactType), s.Explanation, s.CalculatedAt)
			if err != nil {
				return fmt.Errorf("failed to save impact score for article %s company %d: %w",
					s.ArticleID, s.CompanyID, err)
			}
		}
		return nil
	})
}
