package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/widget-specsheets/internal/render"
	"github.com/tomasbasham/widget-specsheets/internal/storage"
)

type UploadOptions struct {
	root *WidgetsOptions

	Source        string
	RemoteName    string
	Directory     string
	Render        bool
	RenderTimeout time.Duration
}

var (
	uploadLong = templates.LongDesc(`
		Upload a file into the configured directory, creating the directory
		if it does not exist.

		SOURCE is a local path, a file:// URL or an http(s) URL. With
		--render, SOURCE must be a web page which is printed to PDF with
		headless Chrome before it is uploaded.`)

	uploadExample = templates.Examples(`
		# Upload a local file
		widgets upload ./sprocket.pdf widgets/sprocket.pdf

		# Upload into a specific directory
		widgets upload --directory widget-specsheets ./sprocket.pdf sprocket.pdf

		# Archive a vendor's HTML specsheet as a PDF
		widgets upload --render https://example.com/sprocket widgets/sprocket.pdf`)
)

func NewUploadOptions(root *WidgetsOptions) *UploadOptions {
	return &UploadOptions{root: root}
}

func NewUploadCommand(o *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "upload SOURCE REMOTE",
		DisableFlagsInUseLine: true,
		Short:                 "Upload a file or web page into the specsheet directory",
		Long:                  uploadLong,
		Example:               uploadExample,
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

	cmd.Flags().StringVarP(&o.Directory, "directory", "d", "", "Directory (bucket) to upload into (default from config)")
	cmd.Flags().BoolVarP(&o.Render, "render", "r", false, "Print SOURCE to PDF with headless Chrome before uploading")
	cmd.Flags().DurationVarP(&o.RenderTimeout, "render-timeout", "t", 30*time.Second, "Total timeout for rendering SOURCE")

	return cmd
}

func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("SOURCE and REMOTE are required")
	}
	o.Source = args[0]
	o.RemoteName = args[1]
	return nil
}

func (o *UploadOptions) Validate() error {
	if len(o.Source) == 0 {
		return fmt.Errorf("SOURCE must not be empty")
	}
	if len(o.RemoteName) == 0 {
		return fmt.Errorf("REMOTE must not be empty")
	}
	return nil
}

func (o *UploadOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := o.root.load()
	if err != nil {
		return err
	}
	if o.Directory != "" {
		cfg.Storage.Directory = o.Directory
	}

	dir, closeDir, err := openDirectory(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeDir()

	uploader := storage.NewUploader(dir, storage.WithLogger(log))

	var result *storage.UploadResult
	if o.Render {
		fmt.Fprintf(o.root.ErrOut, "Rendering %s...\n", o.Source)
		pdf, err := render.PDF(ctx, render.Options{URL: o.Source, Timeout: o.RenderTimeout})
		if err != nil {
			return err
		}
		result, err = uploader.UploadStream(ctx, bytes.NewReader(pdf), o.RemoteName)
		if err != nil {
			return err
		}
	} else {
		result, err = uploader.Upload(ctx, o.Source, o.RemoteName)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(o.root.ErrOut, "Uploaded %d bytes to %s/%s\n", result.Size, dir.Name(), result.ObjectName)
	fmt.Fprintln(o.root.Out, result.URL)
	return nil
}
