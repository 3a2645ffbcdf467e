package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/widget-specsheets/internal/migrate"
)

const (
	migrateUp     = "up"
	migrateDown   = "down"
	migrateStatus = "status"
)

type MigrateOptions struct {
	root *WidgetsOptions

	Action      string
	DatabaseURL string
}

var (
	migrateLong = templates.LongDesc(`
		Apply, roll back or list the database schema migrations.

		ACTION is one of up (apply all pending migrations, the default),
		down (roll back the latest applied migration) or status.`)

	migrateExample = templates.Examples(`
		# Apply pending migrations
		widgets migrate up --database-url postgres://widgets@localhost/widgets

		# Show which migrations have been applied
		widgets migrate status`)
)

func NewMigrateOptions(root *WidgetsOptions) *MigrateOptions {
	return &MigrateOptions{root: root}
}

func NewMigrateCommand(o *MigrateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "migrate [up|down|status]",
		DisableFlagsInUseLine: true,
		Short:                 "Manage the database schema",
		Long:                  migrateLong,
		Example:               migrateExample,
		ValidArgs:             []string{migrateUp, migrateDown, migrateStatus},
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

	cmd.Flags().StringVar(&o.DatabaseURL, "database-url", "", "PostgreSQL connection string (default from config)")

	return cmd
}

func (o *MigrateOptions) Complete(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		o.Action = migrateUp
	case 1:
		o.Action = args[0]
	default:
		return fmt.Errorf("at most one ACTION may be given")
	}
	return nil
}

func (o *MigrateOptions) Validate() error {
	switch o.Action {
	case migrateUp, migrateDown, migrateStatus:
		return nil
	}
	return fmt.Errorf("unknown ACTION %q: want up, down or status", o.Action)
}

func (o *MigrateOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := o.root.load()
	if err != nil {
		return err
	}
	if o.DatabaseURL != "" {
		cfg.Database.URL = o.DatabaseURL
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("a database URL is required: set --database-url or WIDGETS_DATABASE_URL")
	}

	conn, err := pgx.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer conn.Close(context.Background())

	migrations, err := migrate.Embedded()
	if err != nil {
		return err
	}
	runner := migrate.NewRunner(conn, migrations, log)

	switch o.Action {
	case migrateUp:
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(o.root.Out, "Applied %d migration(s)\n", len(applied))

	case migrateDown:
		m, err := runner.Down(ctx)
		if errors.Is(err, migrate.ErrNoMigrations) {
			fmt.Fprintln(o.root.Out, "Nothing to roll back")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(o.root.Out, "Rolled back %s_%s\n", m.Version, m.Name)

	case migrateStatus:
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(o.root.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Version, s.Name, state)
		}
		return tw.Flush()
	}
	return nil
}
