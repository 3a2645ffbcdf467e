package widget

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/widget-specsheets/internal/migrate"
)

// TestPostgresRepository needs a scratch database; it empties the widgets
// table.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("WIDGETS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WIDGETS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrations, err := migrate.Embedded()
	require.NoError(t, err)
	_, err = migrate.NewRunner(pool, migrations, nil).Up(ctx)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE widgets RESTART IDENTITY`)
	require.NoError(t, err)

	repo := NewPostgresRepository(pool)

	w := &Widget{Name: "sprocket"}
	require.NoError(t, repo.Create(ctx, w))
	assert.NotZero(t, w.ID)

	got, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "sprocket", got.Name)
	assert.Empty(t, got.SpecsheetURL)

	updated, err := repo.SetSpecsheetURL(ctx, w.ID, "https://example.com/s.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/s.pdf", updated.SpecsheetURL)

	// V4 signed URLs run to several hundred characters.
	signed := "https://storage.googleapis.com/specs/s.pdf?X-Goog-Signature=" + strings.Repeat("ab", 256)
	updated, err = repo.SetSpecsheetURL(ctx, w.ID, signed)
	require.NoError(t, err)
	assert.Equal(t, signed, updated.SpecsheetURL)

	got, err = repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, signed, got.SpecsheetURL)

	unnamed := &Widget{}
	require.NoError(t, repo.Create(ctx, unnamed))
	var nullName bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT name IS NULL FROM widgets WHERE id = $1`, unnamed.ID).Scan(&nullName))
	assert.True(t, nullName)
	require.NoError(t, repo.Delete(ctx, unnamed.ID))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, w.ID))
	_, err = repo.Get(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, w.ID), ErrNotFound)
	_, err = repo.SetSpecsheetURL(ctx, w.ID, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
