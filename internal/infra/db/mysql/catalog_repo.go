package mysql

import (
	"context"
	"database/sql"

	domain "github.com/userlens/sessionlens/internal/domain/sessions"
)

// CatalogRepository serves the categorical catalogs the handler passes
// into the pipeline context.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListCategories(ctx context.Context, tenant string, kind domain.CategoryKind) ([]*domain.Category, error) {
	const q = `
SELECT id, kind, label
FROM categories
WHERE tenant_id=? AND kind=?
ORDER BY id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Kind, &c.Label); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
