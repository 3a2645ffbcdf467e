package storage

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestErrors_NameTheBackendErrorType(t *testing.T) {
	_, pathErr := os.Open(filepath.Join(t.TempDir(), "missing.pdf"))
	apiErr := &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}

	tests := []struct {
		name     string
		err      error
		wantType string
	}{
		{name: "open failure", err: &OpenError{Name: "missing.pdf", Err: pathErr}, wantType: "*fs.PathError"},
		{name: "initialise failure", err: &InitializeError{Directory: "sheets", Err: apiErr}, wantType: "*googleapi.Error"},
		{name: "http status", err: &OpenError{Name: "u", Err: &HTTPStatusError{URL: "u", StatusCode: 404}}, wantType: "*storage.HTTPStatusError"},
		{name: "step wrapper", err: &UploadError{ObjectName: "a", Err: failed("write failed", errors.New("disk full"))}, wantType: "*errors.errorString"},
		{name: "nested step wrappers", err: &UploadError{ObjectName: "a", Err: failed("sign URL failed", failed("write failed", apiErr))}, wantType: "*googleapi.Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			assert.Contains(t, msg, ": "+tt.wantType+": ")
			assert.NotContains(t, msg, "syscall.Errno")
			assert.NotContains(t, msg, "*storage.stepError")
		})
	}
}

func TestErrors_KeepTheCauseChain(t *testing.T) {
	_, pathErr := os.Open(filepath.Join(t.TempDir(), "missing.pdf"))
	err := &UploadError{ObjectName: "a", Err: failed("write failed", pathErr)}

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "write failed: open ")

	var target *fs.PathError
	assert.ErrorAs(t, err, &target)
}
