// Package render prints web pages to PDF with headless Chrome over the Chrome
// DevTools Protocol, so that an HTML specsheet can be archived as a document.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 paper size in inches.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// Options controls a render.
type Options struct {
	// URL is the page to print. Required.
	URL string

	// Timeout bounds the whole render including browser startup. Defaults
	// to 30 seconds if zero.
	Timeout time.Duration

	// PaperWidth and PaperHeight are in inches. Defaults to A4 if either is
	// zero.
	PaperWidth  float64
	PaperHeight float64

	Landscape bool

	// ExecPath is the Chrome binary. When empty chromedp searches the usual
	// install locations.
	ExecPath string
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.PaperWidth == 0 || o.PaperHeight == 0 {
		o.PaperWidth = a4Width
		o.PaperHeight = a4Height
	}
	return o
}

// PDF navigates to opts.URL, waits for the page to load and returns it
// printed as a PDF document.
func PDF(ctx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, errors.New("render: URL must not be empty")
	}
	opts = opts.withDefaults()

	totalCtx, cancelTotal := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTotal()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(totalCtx, allocOpts...)
	defer cancelAlloc()

	// chromedp logs CDP events it cannot unmarshal when the installed Chrome
	// is newer than the pinned cdproto; those are harmless for printing.
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
	)
	defer cancelTab()

	var buf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(opts.PaperWidth).
				WithPaperHeight(opts.PaperHeight).
				WithLandscape(opts.Landscape).
				Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render: failed to print %s: %w", opts.URL, err)
	}
	return buf, nil
}
