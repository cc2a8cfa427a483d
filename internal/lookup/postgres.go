package lookup

import (
	"context"
	"database/sql"
	"errors"

	"frontdesk/internal/store"
)

// PGResolver resolves codes against the barcode columns of the catalog
// tables. Used when the catalog lives in the same Postgres as the sessions.
type PGResolver struct {
	db *sql.DB
}

// NewPGResolver creates a resolver over the catalog tables.
func NewPGResolver(db *sql.DB) *PGResolver {
	return &PGResolver{db: db}
}

// Resolve checks students, books, then equipment for a matching barcode.
func (r *PGResolver) Resolve(ctx context.Context, code string) (Entity, bool, error) {
	if code == "" {
		return Entity{}, false, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT 'student', id, name FROM students WHERE barcode = $1
		UNION ALL
		SELECT 'book', id, title FROM books WHERE accession_no = $1
		UNION ALL
		SELECT 'equipment', id, name FROM equipment WHERE tag = $1
		LIMIT 1
	`, code)
	var kind, id, label string
	if err := row.Scan(&kind, &id, &label); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, false, nil
		}
		return Entity{}, false, store.MapErr(err)
	}
	return Entity{Kind: Kind(kind), ID: id, Label: label}, true, nil
}
