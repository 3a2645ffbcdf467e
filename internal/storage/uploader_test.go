package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDirectory keeps the last request it was given.
type recordingDirectory struct {
	req     *UploadRequest
	content string
	err     error
}

func (d *recordingDirectory) Name() string { return "recording" }

func (d *recordingDirectory) Put(_ context.Context, req *UploadRequest) (*UploadResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	b, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	d.req = req
	d.content = string(b)
	return &UploadResult{ObjectName: req.ObjectName, URL: "mem://" + req.ObjectName, Size: int64(len(b))}, nil
}

type observation struct {
	directory string
	size      int64
	err       error
}

type recordingObserver struct {
	observations []observation
}

func (o *recordingObserver) ObserveUpload(directory string, size int64, _ time.Duration, err error) {
	o.observations = append(o.observations, observation{directory, size, err})
}

type failingSeeker struct {
	io.Reader
}

func (failingSeeker) Seek(int64, int) (int64, error) {
	return 0, errors.New("seek not supported")
}

func TestUploader_UploadStreamRewinds(t *testing.T) {
	dir := &recordingDirectory{}
	r := strings.NewReader("partially consumed")
	_, err := r.Read(make([]byte, 9))
	require.NoError(t, err)

	result, err := NewUploader(dir).UploadStream(context.Background(), r, "sheet.txt")
	require.NoError(t, err)

	assert.Equal(t, "partially consumed", dir.content)
	assert.Equal(t, int64(len("partially consumed")), result.Size)
	assert.Equal(t, "mem://sheet.txt", result.URL)
}

func TestUploader_ContentType(t *testing.T) {
	tests := []struct {
		name       string
		remoteName string
		content    string
		want       string
	}{
		{name: "from extension", remoteName: "sheet.pdf", content: "anything", want: "application/pdf"},
		{name: "sniffed", remoteName: "sheet", content: "%PDF-1.4\n", want: "application/pdf"},
		{name: "sniffed text", remoteName: "notes", content: "plain words", want: "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &recordingDirectory{}
			_, err := NewUploader(dir).UploadStream(context.Background(), strings.NewReader(tt.content), tt.remoteName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dir.req.ContentType)
			assert.Equal(t, tt.content, dir.content)
		})
	}
}

func TestUploader_UploadStreamErrors(t *testing.T) {
	t.Run("directory failure", func(t *testing.T) {
		cause := errors.New("bucket is read-only")
		obs := &recordingObserver{}
		u := NewUploader(&recordingDirectory{err: cause}, WithObserver(obs))

		_, err := u.UploadStream(context.Background(), strings.NewReader("x"), "a.txt")

		var uploadErr *UploadError
		require.ErrorAs(t, err, &uploadErr)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, `storage: upload "a.txt": *errors.errorString: bucket is read-only`, err.Error())

		require.Len(t, obs.observations, 1)
		assert.Equal(t, "recording", obs.observations[0].directory)
		assert.ErrorIs(t, obs.observations[0].err, cause)
	})

	t.Run("rewind failure", func(t *testing.T) {
		dir := &recordingDirectory{}
		_, err := NewUploader(dir).UploadStream(context.Background(), failingSeeker{strings.NewReader("x")}, "a.txt")

		var uploadErr *UploadError
		require.ErrorAs(t, err, &uploadErr)
		assert.Contains(t, err.Error(), "seek not supported")
		assert.Contains(t, err.Error(), "*errors.errorString")
		assert.Nil(t, dir.req)
	})

	t.Run("nil reader", func(t *testing.T) {
		dir := &recordingDirectory{}
		obs := &recordingObserver{}

		var r io.Reader
		require.NotPanics(t, func() {
			_, err := NewUploader(dir, WithObserver(obs)).UploadStream(context.Background(), r, "a.txt")

			var uploadErr *UploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.ErrorIs(t, err, errNilContent)
		})
		assert.Nil(t, dir.req)
		require.Len(t, obs.observations, 1)
	})
}

func TestUploader_UploadFromPath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "sheet.txt")
	require.NoError(t, os.WriteFile(src, []byte("from disk"), 0o644))

	for _, name := range []string{src, (&url.URL{Scheme: "file", Path: filepath.ToSlash(src)}).String()} {
		dir := &recordingDirectory{}
		obs := &recordingObserver{}

		_, err := NewUploader(dir, WithObserver(obs)).Upload(context.Background(), name, "remote.txt")
		require.NoError(t, err)

		assert.Equal(t, "from disk", dir.content)
		assert.Equal(t, "remote.txt", dir.req.ObjectName)
		require.Len(t, obs.observations, 1)
		assert.Equal(t, int64(len("from disk")), obs.observations[0].size)
	}
}

func TestUploader_UploadMissingFile(t *testing.T) {
	dir := &recordingDirectory{}
	name := filepath.Join(t.TempDir(), "missing.pdf")

	_, err := NewUploader(dir).Upload(context.Background(), name, "remote.pdf")

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, name, openErr.Name)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "*fs.PathError")
	assert.Nil(t, dir.req)
}

func TestUploader_UploadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheet.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "%PDF-1.4 remote")
	}))
	t.Cleanup(srv.Close)

	dir := &recordingDirectory{}
	u := NewUploader(dir, WithHTTPClient(srv.Client()))

	_, err := u.Upload(context.Background(), srv.URL+"/sheet.pdf", "widgets/1/sheet.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 remote", dir.content)

	_, err = u.Upload(context.Background(), srv.URL+"/gone.pdf", "widgets/1/gone.pdf")
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestUploader_UploadIntoLocalDirectory(t *testing.T) {
	dir, err := NewLocalDirectory(t.TempDir(), "specs")
	require.NoError(t, err)

	result, err := NewUploader(dir).UploadStream(context.Background(), strings.NewReader("spec"), "widgets/2/spec.txt")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir.Path(), "widgets", "2", "spec.txt"))
	require.NoError(t, err)
	assert.Equal(t, "spec", string(got))
	assert.Equal(t, int64(4), result.Size)
}
