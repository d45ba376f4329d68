package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
)

type companyRepository struct {
	*BaseRepository
}

func NewCompanyRepository(base *BaseRepository) repository.CompanyRepository {
	return &companyRepository{BaseRepository: base}
}

type companyRow struct {
	ID      int64          `db:"id"`
	Name    string         `db:"name"`
	Ticker  string         `db:"ticker"`
	Sector  string         `db:"sector"`
	Aliases pq.StringArray `db:"aliases"`
}

func (r *companyRepository) All(ctx context.Context) ([]*model.Company, error) {
	var rows []companyRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, name, ticker, sector, aliases FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	out := make([]*model.Company, len(rows))
	for i, row := range rows {
		out[i] = &model.Company{
			ID:      row.ID,
			Name:    row.Name,
			Ticker:  row.Ticker,
			Sector:  row.Sector,
			Aliases: row.Aliases,
		}
	}
	return out, nil
}

// RelationshipBetween looks up the directed relation from companyA to
// companyB, returning RelationshipNone when the graph has no edge. It is
// the single-edge read of the CompanyRepository contract; the scoring
// ripple walks edges in bulk through RelatedCompanies instead.
func (r *companyRepository) RelationshipBetween(ctx context.Context, companyA, companyB int64) (model.RelationshipType, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw,
		`SELECT relationship_type FROM company_relations
		 WHERE company_id = $1 AND related_id = $2`, companyA, companyB)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RelationshipNone, nil
	}
	if err != nil {
		return model.RelationshipNone, fmt.Errorf("failed to look up relationship: %w", err)
	}
	return model.ParseRelationshipType(raw)
}

func (r *companyRepository) RelatedCompanies(ctx context.Context, companyID int64) ([]*model.CompanyRelation, error) {
	var rows []struct {
		RelatedID int64  `db:"related_id"`
		Type      string `db:"relationship_type"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT related_id, relationship_type FROM company_relations
		 WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list related companies: %w", err)
	}

	out := make([]*model.CompanyRelation, 0, len(rows))
	for _, row := range rows {
		typ, err := model.ParseRelationshipType(row.Type)
		if err != nil {
			continue
		}
		out = append(out, &model.CompanyRelation{
			CompanyID: companyID,
			RelatedID: row.RelatedID,
			Type:      typ,
		})
	}
	return out, nil
}

// Watchers returns users with the company on their watchlist, the fan-out
// set for impact-triggered notifications.
func (r *companyRepository) Watchers(ctx context.Context, companyID int64) ([]string, error) {
	var userIDs []string
	err := r.db.SelectContext(ctx, &userIDs,
		`SELECT user_id FROM user_watchlists WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchers: %w", err)
	}
	return userIDs, nil
}
