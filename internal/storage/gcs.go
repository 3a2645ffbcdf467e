package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultSignedURLTTL = 1 * time.Hour
	defaultPublicHost   = "https://storage.googleapis.com"

	// publicRead grants allUsers READER on the bucket or object.
	publicRead = "publicRead"
)

// GCSOptions configures a GCSDirectory.
type GCSOptions struct {
	// Bucket is the directory name. Required.
	Bucket string

	// ProjectID owns the bucket when it has to be created.
	ProjectID string

	// Location is the bucket location used on creation, e.g. "EU". The
	// backend default applies when empty.
	Location string

	// Public makes a newly created bucket and every uploaded object readable
	// by anyone. Uploads return unsigned public URLs.
	Public bool

	// PublicHost prefixes public object URLs. Defaults to
	// https://storage.googleapis.com.
	PublicHost string

	// SignedURLTTL bounds signed URLs handed out for private objects.
	// Defaults to one hour.
	SignedURLTTL time.Duration

	// GoogleAccessID and PrivateKey sign URLs locally. When empty the
	// client's credentials are used.
	GoogleAccessID string
	PrivateKey     []byte
}

// GCSDirectory uploads objects to a Google Cloud Storage bucket.
type GCSDirectory struct {
	client *storage.Client
	bucket *storage.BucketHandle
	opts   GCSOptions
}

// NewGCSDirectory connects to GCS and ensures the bucket named in o exists,
// creating it when necessary. opts are passed through to the underlying GCS
// client, allowing credential and endpoint injection. Every failure is
// reported as an *InitializeError.
func NewGCSDirectory(ctx context.Context, o GCSOptions, opts ...option.ClientOption) (*GCSDirectory, error) {
	if o.Bucket == "" {
		return nil, &InitializeError{Directory: o.Bucket, Err: errEmptyDirectory}
	}
	if o.SignedURLTTL == 0 {
		o.SignedURLTTL = defaultSignedURLTTL
	}
	if o.PublicHost == "" {
		o.PublicHost = defaultPublicHost
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &InitializeError{Directory: o.Bucket, Err: err}
	}

	d := &GCSDirectory{
		client: client,
		bucket: client.Bucket(o.Bucket),
		opts:   o,
	}
	if err := d.createIfNecessary(ctx); err != nil {
		_ = client.Close()
		return nil, &InitializeError{Directory: o.Bucket, Err: err}
	}
	return d, nil
}

func (d *GCSDirectory) createIfNecessary(ctx context.Context) error {
	_, err := d.bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}

	attrs := &storage.BucketAttrs{Location: d.opts.Location}
	if d.opts.Public {
		attrs.PredefinedACL = publicRead
		attrs.PredefinedDefaultObjectACL = publicRead
	}
	err = d.bucket.Create(ctx, d.opts.ProjectID, attrs)
	if isConflict(err) {
		// Created concurrently by someone else.
		return nil
	}
	return err
}

func (d *GCSDirectory) Name() string { return d.opts.Bucket }

// Put writes content to the bucket at req.ObjectName. Public directories
// return the object's public URL; private ones return a signed URL.
func (d *GCSDirectory) Put(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	w := d.bucket.Object(req.ObjectName).NewWriter(ctx)
	w.ContentType = req.ContentType
	if d.opts.Public {
		w.PredefinedACL = publicRead
	}

	n, err := io.Copy(w, req.Content)
	if err != nil {
		_ = w.Close()
		return nil, failed("write failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	result := &UploadResult{ObjectName: req.ObjectName, Size: n}
	if d.opts.Public {
		result.URL = d.publicURL(req.ObjectName)
		return result, nil
	}

	expiresAt := time.Now().Add(d.opts.SignedURLTTL)
	signedURL, err := d.bucket.SignedURL(req.ObjectName, &storage.SignedURLOptions{
		GoogleAccessID: d.opts.GoogleAccessID,
		PrivateKey:     d.opts.PrivateKey,
		Method:         http.MethodGet,
		Expires:        expiresAt,
		Scheme:         storage.SigningSchemeV4,
	})
	if err != nil {
		return nil, failed("sign URL failed", err)
	}
	result.URL = signedURL
	result.ExpiresAt = expiresAt
	return result, nil
}

// Close releases the underlying client.
func (d *GCSDirectory) Close() error {
	return d.client.Close()
}

func (d *GCSDirectory) publicURL(objectName string) string {
	segments := strings.Split(objectName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(d.opts.PublicHost, "/") + "/" + d.opts.Bucket + "/" + strings.Join(segments, "/")
}

func isConflict(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusConflict
}
