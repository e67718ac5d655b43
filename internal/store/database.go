package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/db"
)

// DatabaseCatalog stores packages in the packages table. List columns are
// kept as JSON text so the schema is the same on postgres and sqlite.
type DatabaseCatalog struct {
	db *db.DB
}

// NewDatabaseCatalog creates a new database catalog
func NewDatabaseCatalog(database *db.DB) *DatabaseCatalog {
	return &DatabaseCatalog{db: database}
}

const packageColumns = `id, name, duration_days, price, max_people, includes, locations, image, description, private_info`

type rowScanner interface {
	Scan(dest ...any) error
}

// Seed inserts the given packages when the table is empty.
func (dc *DatabaseCatalog) Seed(ctx context.Context, pkgs []catalog.Package) error {
	var count int
	if err := dc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count packages: %w", err)
	}
	if count > 0 {
		return nil
	}
	tx, err := dc.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, p := range pkgs {
		if err := dc.insert(ctx, tx, p); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed package %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (dc *DatabaseCatalog) List(ctx context.Context) ([]catalog.Package, error) {
	rows, err := dc.db.QueryContext(ctx, `SELECT `+packageColumns+` FROM packages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var pkgs []catalog.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return pkgs, nil
}

func (dc *DatabaseCatalog) Get(ctx context.Context, id int) (catalog.Package, error) {
	row := dc.db.QueryRowContext(ctx, dc.db.Rebind(`SELECT `+packageColumns+` FROM packages WHERE id = $1`), id)
	p, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Package{}, catalog.ErrNotFound
	}
	return p, err
}

func (dc *DatabaseCatalog) Create(ctx context.Context, p catalog.Package) (catalog.Package, error) {
	if err := p.Validate(); err != nil {
		return catalog.Package{}, err
	}
	tx, err := dc.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Package{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM packages`).Scan(&p.ID); err != nil {
		tx.Rollback()
		return catalog.Package{}, fmt.Errorf("failed to allocate package id: %w", err)
	}
	if err := dc.insert(ctx, tx, p); err != nil {
		tx.Rollback()
		return catalog.Package{}, fmt.Errorf("failed to create package: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return catalog.Package{}, fmt.Errorf("failed to commit package: %w", err)
	}
	return p, nil
}

func (dc *DatabaseCatalog) Update(ctx context.Context, id int, patch catalog.Patch) (catalog.Package, error) {
	cur, err := dc.Get(ctx, id)
	if err != nil {
		return catalog.Package{}, err
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		return catalog.Package{}, err
	}
	includes, locations, err := encodeLists(next)
	if err != nil {
		return catalog.Package{}, err
	}
	query := dc.db.Rebind(`
		UPDATE packages SET
			name = $1, duration_days = $2, price = $3, max_people = $4,
			includes = $5, locations = $6, image = $7, description = $8,
			private_info = $9, updated_at = CURRENT_TIMESTAMP
		WHERE id = $10
	`)
	res, err := dc.db.ExecContext(ctx, query,
		next.Name, next.DurationDays, next.Price, next.MaxPeople,
		includes, locations, next.Image, next.Description, next.PrivateInfo, id)
	if err != nil {
		return catalog.Package{}, fmt.Errorf("failed to update package: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Package{}, catalog.ErrNotFound
	}
	return next, nil
}

func (dc *DatabaseCatalog) Delete(ctx context.Context, id int) error {
	res, err := dc.db.ExecContext(ctx, dc.db.Rebind(`DELETE FROM packages WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("failed to delete package: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete package: %w", err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (dc *DatabaseCatalog) insert(ctx context.Context, tx *sql.Tx, p catalog.Package) error {
	includes, locations, err := encodeLists(p)
	if err != nil {
		return err
	}
	query := dc.db.Rebind(`
		INSERT INTO packages (` + packageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	_, err = tx.ExecContext(ctx, query,
		p.ID, p.Name, p.DurationDays, p.Price, p.MaxPeople,
		includes, locations, p.Image, p.Description, p.PrivateInfo)
	return err
}

func scanPackage(row rowScanner) (catalog.Package, error) {
	var p catalog.Package
	var includes, locations string
	err := row.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.MaxPeople,
		&includes, &locations, &p.Image, &p.Description, &p.PrivateInfo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan package: %w", err)
	}
	if err := json.Unmarshal([]byte(includes), &p.Includes); err != nil {
		return p, fmt.Errorf("package %d includes: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(locations), &p.Locations); err != nil {
		return p, fmt.Errorf("package %d locations: %w", p.ID, err)
	}
	return p, nil
}

func encodeLists(p catalog.Package) (string, string, error) {
	includes, err := json.Marshal(nonNil(p.Includes))
	if err != nil {
		return "", "", err
	}
	locations, err := json.Marshal(nonNil(p.Locations))
	if err != nil {
		return "", "", err
	}
	return string(includes), string(locations), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
