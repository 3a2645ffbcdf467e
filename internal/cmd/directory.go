package cmd

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/tomasbasham/widget-specsheets/internal/config"
	"github.com/tomasbasham/widget-specsheets/internal/storage"
)

// openDirectory connects to the configured backend, creating the directory
// if necessary. The returned func releases the connection.
func openDirectory(ctx context.Context, cfg config.StorageConfig) (storage.Directory, func() error, error) {
	switch cfg.Provider {
	case config.ProviderGCS:
		var opts []option.ClientOption
		if cfg.GCS.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		}
		if cfg.GCS.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.GCS.Endpoint))
		}
		if cfg.GCS.Anonymous {
			opts = append(opts, option.WithoutAuthentication())
		}

		dir, err := storage.NewGCSDirectory(ctx, storage.GCSOptions{
			Bucket:       cfg.Directory,
			ProjectID:    cfg.GCS.ProjectID,
			Location:     cfg.GCS.Location,
			Public:       cfg.Public,
			SignedURLTTL: cfg.GCS.SignedURLTTL,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return dir, dir.Close, nil

	case config.ProviderLocal:
		dir, err := storage.NewLocalDirectory(cfg.LocalRoot, cfg.Directory)
		if err != nil {
			return nil, nil, err
		}
		return dir, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
