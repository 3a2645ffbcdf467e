// Package migrate applies the versioned SQL schema migrations embedded in the
// binary to a PostgreSQL database.
//
// Migration files are named <version>_<name>.up.sql and
// <version>_<name>.down.sql, where version is a 14 digit UTC timestamp.
// Applied versions are recorded in the schema_migrations table.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var embedded embed.FS

var fileName = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.(up|down)\.sql$`)

var ErrNoMigrations = errors.New("migrate: no applied migrations")

const createLedger = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY
	);
`

// Migration is one schema change.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// Status reports whether a migration has been applied.
type Status struct {
	Migration
	Applied bool
}

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Embedded returns the migrations compiled into the binary.
func Embedded() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every migration in the root of fsys, ordered by version.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: failed to list migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileName.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("migrate: malformed migration file name %q", e.Name())
		}
		version, name, direction := m[1], m[2], m[3]

		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("migrate: failed to read %q: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		}
		if mig.Name != name {
			return nil, fmt.Errorf("migrate: version %s used by %q and %q", version, mig.Name, name)
		}
		switch direction {
		case "up":
			mig.Up = string(body)
		case "down":
			mig.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" {
			return nil, fmt.Errorf("migrate: %s_%s has no up migration", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Runner applies migrations to a database.
type Runner struct {
	db         DB
	migrations []Migration
	logger     *slog.Logger
}

// NewRunner returns a Runner for the given migrations, which must be ordered
// by version as returned by Load.
func NewRunner(db DB, migrations []Migration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, migrations: migrations, logger: logger}
}

// Up applies every pending migration in version order and returns the ones
// applied. Each migration runs in its own transaction together with its
// ledger entry.
func (r *Runner) Up(ctx context.Context) ([]Migration, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range r.migrations {
		if applied[m.Version] {
			continue
		}
		if err := r.run(ctx, m.Up, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			return done, fmt.Errorf("migrate: %s_%s up: %w", m.Version, m.Name, err)
		}
		r.logger.Info("applied migration", "version", m.Version, "name", m.Name)
		done = append(done, m)
	}
	return done, nil
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down(ctx context.Context) (*Migration, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if !applied[m.Version] {
			continue
		}
		if m.Down == "" {
			return nil, fmt.Errorf("migrate: %s_%s is irreversible", m.Version, m.Name)
		}
		if err := r.run(ctx, m.Down, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return nil, fmt.Errorf("migrate: %s_%s down: %w", m.Version, m.Name, err)
		}
		r.logger.Info("rolled back migration", "version", m.Version, "name", m.Name)
		return &m, nil
	}
	return nil, ErrNoMigrations
}

// Status lists every known migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]Status, len(r.migrations))
	for i, m := range r.migrations {
		statuses[i] = Status{Migration: m, Applied: applied[m.Version]}
	}
	return statuses, nil
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	if _, err := r.db.Exec(ctx, createLedger); err != nil {
		return nil, fmt.Errorf("migrate: failed to create ledger: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrate: failed to read ledger: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("migrate: failed to read ledger: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (r *Runner) run(ctx context.Context, script, ledger, version string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, script); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, ledger, version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
