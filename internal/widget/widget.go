// Package widget provides the widget record, its repositories and the service
// attaching specsheets to widgets through the uploader.
package widget

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no widget has the requested ID.
var ErrNotFound = errors.New("widget: not found")

// Widget is a row of the widgets table.
type Widget struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SpecsheetURL string    `json:"specsheet_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository persists widgets. The in-memory implementation suits a single
// instance and tests; PostgresRepository works against the migrated schema.
type Repository interface {
	Create(ctx context.Context, w *Widget) error
	Get(ctx context.Context, id int64) (*Widget, error)
	List(ctx context.Context) ([]*Widget, error)
	SetSpecsheetURL(ctx context.Context, id int64, url string) (*Widget, error)
	Delete(ctx context.Context, id int64) error
}
