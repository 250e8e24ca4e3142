package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies a recoverable domain error. Codes are stable and part of
// the public contract; HTTP controllers map them to status codes.
type Code string

const (
	CodePlanNotFound        Code = "PLAN_NOT_FOUND"
	CodeFeatureNotFound     Code = "FEATURE_NOT_FOUND"
	CodePlanFeatureNotFound Code = "PLAN_FEATURE_NOT_FOUND"

	CodePlanFeatureAlreadyExists Code = "PLAN_FEATURE_ALREADY_EXISTS"
	CodeDuplicateInBatch         Code = "DUPLICATE_IN_BATCH"
	CodeBulkValidationError      Code = "BULK_VALIDATION_ERROR"
	CodeBulkUpdateValidation     Code = "BULK_UPDATE_VALIDATION_ERROR"
	CodeBulkDuplicateError       Code = "BULK_DUPLICATE_ERROR"
	CodeNoFeaturesToCopy         Code = "NO_FEATURES_TO_COPY"
	CodeInvalidValue             Code = "INVALID_VALUE"

	CodePlanNameExists   Code = "PLAN_NAME_EXISTS"
	CodePlanSlugExists   Code = "PLAN_SLUG_EXISTS"
	CodeDuplicateKeyName Code = "DUPLICATE_KEY_NAME"
	CodeFeatureInUse     Code = "FEATURE_IN_USE"
	CodePlanHasFeatures  Code = "PLAN_HAS_FEATURES"

	CodeValidationError Code = "VALIDATION_ERROR"
	CodeStorageFailure  Code = "STORAGE_FAILURE"
)

// Error is a typed, recoverable domain error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a typed domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed domain error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from an error chain. The second return
// value is false for untyped errors.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
