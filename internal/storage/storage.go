// Package storage uploads files and streams into a directory (a bucket on the
// storage backend), creating the directory when it does not yet exist. The GCS
// implementation is the production backend; LocalDirectory serves development
// and tests.
package storage

import (
	"context"
	"io"
	"time"
)

// Directory persists objects under a single named bucket.
type Directory interface {
	// Name is the bucket name the directory writes into.
	Name() string

	// Put writes req.Content to req.ObjectName and returns where it can be
	// retrieved from.
	Put(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// ObjectName is the object path within the directory, '/' separated.
	ObjectName string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentType is the MIME type of the content, e.g. "application/pdf".
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// ObjectName is the object path within the directory.
	ObjectName string

	// URL addresses the uploaded object.
	URL string

	// Size is the number of bytes written.
	Size int64

	// ExpiresAt is when URL becomes invalid. Zero for URLs that do not expire.
	ExpiresAt time.Time
}
