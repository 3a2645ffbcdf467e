package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDF_RequiresURL(t *testing.T) {
	_, err := PDF(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL must not be empty")
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{URL: "https://example.com", PaperWidth: 11}.withDefaults()

	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, a4Width, got.PaperWidth)
	assert.Equal(t, a4Height, got.PaperHeight)

	custom := Options{Timeout: time.Second, PaperWidth: 8.5, PaperHeight: 11}.withDefaults()
	assert.Equal(t, time.Second, custom.Timeout)
	assert.Equal(t, 8.5, custom.PaperWidth)
	assert.Equal(t, 11.0, custom.PaperHeight)
}

func TestPDF_MissingBrowser(t *testing.T) {
	_, err := PDF(context.Background(), Options{
		URL:      "about:blank",
		Timeout:  5 * time.Second,
		ExecPath: "/nonexistent/chrome",
	})
	assert.Error(t, err)
}
