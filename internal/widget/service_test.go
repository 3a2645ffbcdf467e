package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/widget-specsheets/internal/storage"
)

var objectPattern = regexp.MustCompile(`^widgets/1/[0-9a-f-]{36}/sheet\.pdf$`)

func newTestService(t *testing.T) (*Service, *storage.LocalDirectory) {
	t.Helper()
	dir, err := storage.NewLocalDirectory(t.TempDir(), "specs")
	require.NoError(t, err)
	return NewService(NewMemoryRepository(), storage.NewUploader(dir), nil), dir
}

func TestService_AttachSpecsheet(t *testing.T) {
	ctx := context.Background()
	svc, dir := newTestService(t)

	w, err := svc.Create(ctx, "sprocket", "")
	require.NoError(t, err)
	assert.Empty(t, w.SpecsheetURL)

	attached, err := svc.AttachSpecsheet(ctx, w.ID, strings.NewReader("%PDF-1.4"), "uploads/sheet.pdf")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(attached.SpecsheetURL, "file://"))

	object := strings.TrimPrefix(attached.SpecsheetURL, "file://"+filepath.ToSlash(dir.Path())+"/")
	assert.Regexp(t, objectPattern, object)

	stored, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, attached.SpecsheetURL, stored.SpecsheetURL)
}

// signingDirectory hands out URLs as long as a V4 signed URL.
type signingDirectory struct{}

func (signingDirectory) Name() string { return "signing" }

func (signingDirectory) Put(_ context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
	return &storage.UploadResult{
		ObjectName: req.ObjectName,
		URL:        "https://storage.googleapis.com/signing/" + req.ObjectName + "?X-Goog-Signature=" + strings.Repeat("0a", 256),
		ExpiresAt:  time.Now().Add(time.Hour),
	}, nil
}

func TestService_AttachSpecsheetKeepsLongURLs(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), storage.NewUploader(signingDirectory{}), nil)

	w, err := svc.Create(ctx, "sprocket", "")
	require.NoError(t, err)

	attached, err := svc.AttachSpecsheet(ctx, w.ID, strings.NewReader("%PDF-1.4"), "sheet.pdf")
	require.NoError(t, err)
	assert.Greater(t, len(attached.SpecsheetURL), 512)

	stored, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, attached.SpecsheetURL, stored.SpecsheetURL)
	assert.True(t, strings.HasSuffix(stored.SpecsheetURL, strings.Repeat("0a", 256)))
}

func TestService_AttachSpecsheetUnknownWidget(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AttachSpecsheet(context.Background(), 99, strings.NewReader("x"), "sheet.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CreateWithSource(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	src := filepath.Join(t.TempDir(), "sheet.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	w, err := svc.Create(ctx, "sprocket", src)
	require.NoError(t, err)
	assert.Contains(t, w.SpecsheetURL, "/sheet.pdf")
}

func TestService_CreateWithURLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	t.Cleanup(srv.Close)

	dir, err := storage.NewLocalDirectory(t.TempDir(), "specs")
	require.NoError(t, err)
	svc := NewService(NewMemoryRepository(), storage.NewUploader(dir, storage.WithHTTPClient(srv.Client())), nil)

	w, err := svc.Create(context.Background(), "sprocket", srv.URL+"/docs/sheet.pdf?v=2")
	require.NoError(t, err)
	assert.Contains(t, w.SpecsheetURL, "/sheet.pdf")
}

func TestService_CreateRollsBackOnOpenFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, "sprocket", filepath.Join(t.TempDir(), "missing.pdf"))

	var openErr *storage.OpenError
	require.True(t, errors.As(err, &openErr))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCleanFilename(t *testing.T) {
	tests := map[string]string{
		"sheet.pdf":          "sheet.pdf",
		"dir/sub/sheet.pdf":  "sheet.pdf",
		"  spaced.pdf ":      "spaced.pdf",
		"":                   defaultSpecsheetName,
		"/":                  defaultSpecsheetName,
		"..":                 defaultSpecsheetName,
		"/docs/v2/sheet.pdf": "sheet.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanFilename(in), in)
	}
}
