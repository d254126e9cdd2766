package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/inviteu/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLRepository reads the catalog from a sqlite database seeded by migrations.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(dbPath string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

func (r *SQLRepository) RunMigrations() error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{
		MigrationsTable: "catalog_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *SQLRepository) FindTemplate(ctx context.Context, id string) (domain.CatalogEntry, error) {
	return r.find(ctx, id, domain.KindTemplate)
}

func (r *SQLRepository) FindPackage(ctx context.Context, id string) (domain.CatalogEntry, error) {
	return r.find(ctx, id, domain.KindPackage)
}

func (r *SQLRepository) find(ctx context.Context, id string, kind domain.ItemKind) (domain.CatalogEntry, error) {
	query := `
		SELECT id, kind, name, price, min_price
		FROM catalog_entries
		WHERE id = $1 AND kind = $2
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	}
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("failed to query catalog entry: %w", err)
	}
	return entry, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	query := `
		SELECT id, kind, name, price, min_price
		FROM catalog_entries
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.CatalogEntry, error) {
	var (
		entry domain.CatalogEntry
		kind  string
	)
	if err := row.Scan(&entry.ID, &kind, &entry.Name, &entry.UnitPrice, &entry.MinPrice); err != nil {
		return domain.CatalogEntry{}, err
	}
	entry.Kind = domain.ItemKind(kind)
	if entry.Kind == domain.KindPackage {
		entry.Name = packageNamePrefix + entry.Name
	}
	return entry, nil
}
