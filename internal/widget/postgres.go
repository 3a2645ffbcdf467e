package widget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores widgets in the widgets table.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectWidget = `
	SELECT id, COALESCE(name, ''), COALESCE(specsheet_url, ''), created_at, updated_at
	FROM widgets
`

func (r *PostgresRepository) Create(ctx context.Context, w *Widget) error {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx,
		`INSERT INTO widgets (name, specsheet_url, created_at, updated_at)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $3)
		 RETURNING id`,
		w.Name, w.SpecsheetURL, now,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("widget: insert failed: %w", err)
	}
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Widget, error) {
	rows, err := r.db.Query(ctx, selectWidget+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("widget: select failed: %w", err)
	}
	w, err := pgx.CollectOneRow(rows, scanWidget)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("widget: select failed: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Widget, error) {
	rows, err := r.db.Query(ctx, selectWidget+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("widget: select failed: %w", err)
	}
	widgets, err := pgx.CollectRows(rows, scanWidget)
	if err != nil {
		return nil, fmt.Errorf("widget: select failed: %w", err)
	}
	return widgets, nil
}

func (r *PostgresRepository) SetSpecsheetURL(ctx context.Context, id int64, url string) (*Widget, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE widgets SET specsheet_url = NULLIF($2, ''), updated_at = $3
		 WHERE id = $1
		 RETURNING id, COALESCE(name, ''), COALESCE(specsheet_url, ''), created_at, updated_at`,
		id, url, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("widget: update failed: %w", err)
	}
	w, err := pgx.CollectOneRow(rows, scanWidget)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("widget: update failed: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("widget: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWidget(row pgx.CollectableRow) (*Widget, error) {
	var w Widget
	if err := row.Scan(&w.ID, &w.Name, &w.SpecsheetURL, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
