package model

// Company is a row in the read-only company graph consumed by the impact
// pipeline.
type Company struct {
	ID      int64    `db:"id" json:"id"`
	Name    string   `db:"name" json:"name"`
	Ticker  string   `db:"ticker" json:"ticker"`
	Sector  string   `db:"sector" json:"sector"`
	Aliases []string `db:"-" json:"aliases,omitempty"`
}

// CompanyRelation links two companies in the graph.
type CompanyRelation struct {
	CompanyID int64            `db:"company_id" json:"company_id"`
	RelatedID int64            `db:"related_id" json:"related_id"`
	Type      RelationshipType `db:"relationship_type" json:"relationship_type"`
}
