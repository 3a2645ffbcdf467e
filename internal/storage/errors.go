package storage

import (
	"errors"
	"fmt"
	"net/http"
)

var errEmptyDirectory = errors.New("directory name must not be empty")

// InitializeError reports a failure to connect to the backend or to find or
// create the directory.
type InitializeError struct {
	Directory string
	Err       error
}

func (e *InitializeError) Error() string {
	return fmt.Sprintf("storage: initialise directory %q: %s", e.Directory, describe(e.Err))
}

func (e *InitializeError) Unwrap() error { return e.Err }

// OpenError reports a failure to open the source of an upload.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("storage: open %q: %s", e.Name, describe(e.Err))
}

func (e *OpenError) Unwrap() error { return e.Err }

// UploadError reports a failure to write an object into the directory.
type UploadError struct {
	ObjectName string
	Err        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("storage: upload %q: %s", e.ObjectName, describe(e.Err))
}

func (e *UploadError) Unwrap() error { return e.Err }

// HTTPStatusError is the cause of an OpenError when an http(s) source answers
// with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// stepError names the step of an upload that failed without hiding the
// backend's error from describe.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func failed(step string, err error) error {
	return &stepError{step: step, err: err}
}

// describe renders err as "<type>: <message>". The type is that of the error
// the backend returned; only this package's own step wrappers are looked
// through.
func describe(err error) string {
	if err == nil {
		return "<nil>"
	}
	cause := err
	for {
		step, ok := cause.(*stepError)
		if !ok {
			break
		}
		cause = step.err
	}
	return fmt.Sprintf("%T: %s", cause, err)
}
