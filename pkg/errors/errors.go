package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableFile means no encoding/delimiter combination produced a
	// usable header and data rows. The job is failed and the user must
	// re-upload.
	ErrUnreadableFile = errors.New("unreadable file: no encoding/delimiter combination matched")

	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrEmptyFile         = errors.New("file contains no data rows")
	ErrNoStagingRows     = errors.New("no staging rows found for job")
)

// FieldError reports a single field that failed a structural check while
// parsing an uploaded file.
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

// RetryableError wraps a transient storage or fetch failure. The queue
// collaborator retries these; the processor never does.
type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}
