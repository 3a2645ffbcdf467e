package storage

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"
)

var errNilContent = errors.New("content reader must not be nil")

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

// Observer is notified of every upload attempt, successful or not.
type Observer interface {
	ObserveUpload(directory string, size int64, elapsed time.Duration, err error)
}

// Uploader stores files and streams in a Directory.
type Uploader struct {
	dir      Directory
	client   *http.Client
	logger   *slog.Logger
	observer Observer
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient sets the client used to fetch http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

// WithLogger sets the logger. Uploads are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// WithObserver registers o to be told about every upload.
func WithObserver(o Observer) Option {
	return func(u *Uploader) { u.observer = o }
}

// NewUploader returns an Uploader writing into dir.
func NewUploader(dir Directory, opts ...Option) *Uploader {
	u := &Uploader{
		dir:    dir,
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Directory returns the directory uploads are written into.
func (u *Uploader) Directory() Directory { return u.dir }

// UploadStream rewinds r when it is seekable and uploads its content as
// remoteName. Any failure is reported as an *UploadError.
func (u *Uploader) UploadStream(ctx context.Context, r io.Reader, remoteName string) (*UploadResult, error) {
	start := time.Now()
	result, err := u.uploadStream(ctx, r, remoteName)
	if u.observer != nil {
		var size int64
		if result != nil {
			size = result.Size
		}
		u.observer.ObserveUpload(u.dir.Name(), size, time.Since(start), err)
	}
	if err != nil {
		return nil, &UploadError{ObjectName: remoteName, Err: err}
	}

	u.logger.Debug("uploaded object",
		"directory", u.dir.Name(),
		"object", result.ObjectName,
		"bytes", result.Size,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (u *Uploader) uploadStream(ctx context.Context, r io.Reader, remoteName string) (*UploadResult, error) {
	if r == nil {
		return nil, errNilContent
	}
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, failed("rewind failed", err)
		}
	}

	contentType, content := detectContentType(remoteName, r)
	return u.dir.Put(ctx, &UploadRequest{
		ObjectName:  remoteName,
		Content:     content,
		ContentType: contentType,
	})
}

// Upload opens name and uploads its content as remoteName. name is a local
// path, a file:// URL or an http(s):// URL. A source that cannot be opened is
// reported as an *OpenError; failures after that as an *UploadError.
func (u *Uploader) Upload(ctx context.Context, name, remoteName string) (*UploadResult, error) {
	src, err := u.open(ctx, name)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	defer src.Close()

	return u.UploadStream(ctx, src, remoteName)
}

func (u *Uploader) open(ctx context.Context, name string) (io.ReadCloser, error) {
	parsed, err := url.Parse(name)
	if err != nil {
		return os.Open(name)
	}

	switch parsed.Scheme {
	case "http", "https":
		return u.fetch(ctx, name)
	case "file":
		return os.Open(parsed.Path)
	default:
		return os.Open(name)
	}
}

func (u *Uploader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// detectContentType derives the MIME type from the extension of remoteName,
// falling back to sniffing the first bytes of r. The returned reader must be
// used in place of r.
func detectContentType(remoteName string, r io.Reader) (string, io.Reader) {
	if ct := mime.TypeByExtension(path.Ext(remoteName)); ct != "" {
		return ct, r
	}
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	return http.DetectContentType(head), br
}
