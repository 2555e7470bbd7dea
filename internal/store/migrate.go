package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/faeterjconnect/connect/internal/store/migrations"
)

// ErrNoSearchIndex is returned by SearchMessages when the cache was built
// without the messages_fts table.
var ErrNoSearchIndex = errors.New("store: full-text index unavailable")

// MigrateResult reports the schema before and after Migrate.
type MigrateResult struct {
	From    uint
	Version uint
	// Search is true when the messages_fts index exists.
	Search bool
}

// Changed reports whether any migration ran.
func (r *MigrateResult) Changed() bool { return r.From != r.Version }

// Migrate brings the cache schema up to date. A schema left dirty by an
// interrupted run is reported rather than forced, since the cache can
// always be deleted and rebuilt from the backend.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	res := &MigrateResult{}
	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return nil, fmt.Errorf("cache schema is dirty at version %d; delete the cache to rebuild it", from)
	default:
		res.From = from
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("migration up: %w", err)
	}
	res.Version, _, _ = m.Version()

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE name = 'messages_fts'`).Scan(&n); err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}
	res.Search = n > 0
	db.search = res.Search
	return res, nil
}
