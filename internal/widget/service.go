package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tomasbasham/widget-specsheets/internal/storage"
)

const defaultSpecsheetName = "specsheet"

// Uploader is satisfied by *storage.Uploader.
type Uploader interface {
	UploadStream(ctx context.Context, r io.Reader, remoteName string) (*storage.UploadResult, error)
	Upload(ctx context.Context, name, remoteName string) (*storage.UploadResult, error)
}

// Service manages widgets and their specsheets.
type Service struct {
	repo     Repository
	uploader Uploader
	logger   *slog.Logger
}

func NewService(repo Repository, uploader Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, uploader: uploader, logger: logger}
}

// Create stores a new widget. When specsheetSource is non-empty it is
// uploaded as the widget's specsheet; if that fails the widget is removed
// again and the upload error returned.
func (s *Service) Create(ctx context.Context, name, specsheetSource string) (*Widget, error) {
	w := &Widget{Name: name}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("created widget", "widget_id", w.ID)

	if specsheetSource == "" {
		return w, nil
	}

	attached, err := s.AttachSpecsheetFrom(ctx, w.ID, specsheetSource)
	if err != nil {
		if delErr := s.repo.Delete(ctx, w.ID); delErr != nil {
			return nil, errors.Join(err, delErr)
		}
		return nil, err
	}
	return attached, nil
}

// AttachSpecsheet uploads r as the specsheet of widget id and records the
// resulting URL.
func (s *Service) AttachSpecsheet(ctx context.Context, id int64, r io.Reader, filename string) (*Widget, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.uploader.UploadStream(ctx, r, objectPath(id, filename))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, id, result)
}

// AttachSpecsheetFrom uploads the file or URL named by source as the
// specsheet of widget id and records the resulting URL.
func (s *Service) AttachSpecsheetFrom(ctx context.Context, id int64, source string) (*Widget, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.uploader.Upload(ctx, source, objectPath(id, sourceFilename(source)))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, id, result)
}

func (s *Service) record(ctx context.Context, id int64, result *storage.UploadResult) (*Widget, error) {
	w, err := s.repo.SetSpecsheetURL(ctx, id, result.URL)
	if err != nil {
		return nil, fmt.Errorf("widget: failed to record specsheet for %d: %w", id, err)
	}
	s.logger.Info("attached specsheet",
		"widget_id", id,
		"object", result.ObjectName,
		"bytes", result.Size,
	)
	return w, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Widget, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Widget, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// objectPath namespaces every upload so re-uploads never overwrite an object
// a previously stored URL still points at.
func objectPath(id int64, filename string) string {
	return fmt.Sprintf("widgets/%d/%s/%s", id, uuid.NewString(), cleanFilename(filename))
}

func sourceFilename(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		return u.Path
	}
	return source
}

func cleanFilename(name string) string {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	switch base {
	case "", ".", "/", "..":
		return defaultSpecsheetName
	}
	return base
}
