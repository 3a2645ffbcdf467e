package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/widget-specsheets/internal/config"
	"github.com/tomasbasham/widget-specsheets/internal/metrics"
	"github.com/tomasbasham/widget-specsheets/internal/server"
	"github.com/tomasbasham/widget-specsheets/internal/storage"
	"github.com/tomasbasham/widget-specsheets/internal/widget"
)

const shutdownTimeout = 10 * time.Second

type ServeOptions struct {
	root *WidgetsOptions

	Port      int
	Directory string
}

var (
	serveLong = templates.LongDesc(`
		Start the widgets HTTP server.

		Widgets are kept in PostgreSQL when a database URL is configured and
		in memory otherwise. A Redis address enables the widget cache.`)

	serveExample = templates.Examples(`
		# Start on the default port
		widgets serve

		# Start on a custom port with a specific directory
		widgets serve --port 9090 --directory widget-specsheets`)
)

func NewServeOptions(root *WidgetsOptions) *ServeOptions {
	return &ServeOptions{root: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the widgets HTTP server",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&o.Port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&o.Directory, "directory", "d", "", "Directory (bucket) for specsheets (default from config)")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *ServeOptions) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := o.root.load()
	if err != nil {
		return err
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.Directory != "" {
		cfg.Storage.Directory = o.Directory
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	dir, closeDir, err := openDirectory(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeDir()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	uploader := storage.NewUploader(dir, storage.WithLogger(log), storage.WithObserver(m))
	svc := widget.NewService(repo, uploader, log)
	srv := server.New(svc, m, reg, log).HTTPServer(fmt.Sprintf(":%d", cfg.Server.Port))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting widgets server", "addr", srv.Addr, "directory", dir.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openRepository picks PostgreSQL when a database URL is configured and the
// in-memory repository otherwise, fronted by Redis when an address is set.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (widget.Repository, func(), error) {
	var (
		repo    widget.Repository
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("unable to reach database: %w", err)
		}
		closers = append(closers, pool.Close)
		repo = widget.NewPostgresRepository(pool)
	} else {
		log.Warn("no database configured, widgets are kept in memory")
		repo = widget.NewMemoryRepository()
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Cache failures fall through to the inner repository.
			log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		repo = widget.NewCachedRepository(repo, client, cfg.Redis.TTL, log)
	}

	return repo, closeAll, nil
}
