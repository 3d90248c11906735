package box

import (
	"errors"
	"fmt"
)

// DecodeCode classifies why a box or register could not be decoded.
type DecodeCode string

const (
	CodeMissingRegister           DecodeCode = "missing_register"
	CodeRegisterTypeMismatch      DecodeCode = "register_type_mismatch"
	CodeMalformedCollectionLength DecodeCode = "malformed_collection_length"
	CodeUnsupportedSchemaVersion  DecodeCode = "unsupported_schema_version"
	CodeUnknownType               DecodeCode = "unknown_type"
	CodeUnknownStatus             DecodeCode = "unknown_status"
	CodeInvalidField              DecodeCode = "invalid_field"
)

// DecodeError reports malformed register data. A box that fails to decode is
// rejected; the error is never recoverable by retrying.
type DecodeError struct {
	Code     DecodeCode
	Register string // "R4".."R9", or "" for box-level fields
	Detail   string
}

func (e *DecodeError) Error() string {
	if e.Register == "" {
		return fmt.Sprintf("decode: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("decode %s: %s: %s", e.Register, e.Code, e.Detail)
}

// NewDecodeError creates a DecodeError with a formatted detail.
func NewDecodeError(code DecodeCode, reg string, format string, args ...any) *DecodeError {
	return &DecodeError{Code: code, Register: reg, Detail: fmt.Sprintf(format, args...)}
}

// IsDecodeError checks whether err is a DecodeError and returns it.
func IsDecodeError(err error) (*DecodeError, bool) {
	var d *DecodeError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
