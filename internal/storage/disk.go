package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalDirectory writes objects to a directory on the local filesystem. The
// URL returned is a file:// URL and never expires.
type LocalDirectory struct {
	name string
	path string
}

// NewLocalDirectory creates a LocalDirectory at root/name. The directory is
// created if it does not already exist. Failures are reported as an
// *InitializeError.
func NewLocalDirectory(root, name string) (*LocalDirectory, error) {
	if name == "" {
		return nil, &InitializeError{Directory: name, Err: errEmptyDirectory}
	}
	abs, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, &InitializeError{Directory: name, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &InitializeError{Directory: name, Err: err}
	}
	return &LocalDirectory{name: name, path: abs}, nil
}

func (d *LocalDirectory) Name() string { return d.name }

// Path is the absolute filesystem path of the directory.
func (d *LocalDirectory) Path() string { return d.path }

// Put writes content to <directory>/<objectName>, creating any intermediate
// directories as needed.
func (d *LocalDirectory) Put(_ context.Context, req *UploadRequest) (*UploadResult, error) {
	dest := filepath.Join(d.path, filepath.FromSlash(req.ObjectName))
	rel, err := filepath.Rel(d.path, dest)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("object name %q escapes directory", req.ObjectName)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, req.Content)
	if err != nil {
		_ = f.Close()
		return nil, failed("write failed", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}

	return &UploadResult{
		ObjectName: req.ObjectName,
		URL:        fileURL.String(),
		Size:       n,
	}, nil
}
