package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	ErrUndecodableStream  = errors.New("undecodable stream")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FailureReason is the machine-readable code reported for a rejected upload.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrUnrecognizedFormat):
		return "unrecognized_format"
	case IsKind(err, ErrUndecodableStream):
		return "undecodable_stream"
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	case IsKind(err, ErrDocumentNotFound):
		return "not_found"
	case IsKind(err, ErrTemporary):
		return "storage_error"
	default:
		return "internal_error"
	}
}
