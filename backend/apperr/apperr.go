// Package apperr provides the coded domain errors shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"

	// Course lifecycle
	CodeCourseNoModules        Code = "COURSE_NO_MODULES"
	CodeModuleNoLessons        Code = "MODULE_NO_LESSONS"
	CodeTeacherNotVerified     Code = "TEACHER_NOT_VERIFIED"
	CodeFeedbackRequired       Code = "REVIEW_FEEDBACK_REQUIRED"
	CodeInvalidTransition      Code = "COURSE_INVALID_TRANSITION"
	CodePendingReview          Code = "COURSE_PENDING_REVIEW"
	CodeCourseNotPublished     Code = "COURSE_NOT_PUBLISHED"
	CodeLessonVariantMismatch  Code = "LESSON_VARIANT_MISMATCH"
	CodeReviewAlreadyProcessed Code = "REVIEW_ALREADY_PROCESSED"

	// Certificates
	CodeCertificateNotEligible Code = "CERTIFICATE_NOT_ELIGIBLE"
)

// HTTPStatus maps a code to the status it is surfaced with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeCourseNoModules, CodeModuleNoLessons, CodeTeacherNotVerified,
		CodeFeedbackRequired, CodeCourseNotPublished, CodeLessonVariantMismatch:
		return http.StatusUnprocessableEntity
	case CodeInvalidTransition, CodePendingReview, CodeReviewAlreadyProcessed, CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden, CodeCertificateNotEligible:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying details for the caller.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound names the missing resource.
func NotFound(resource string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  resource + " not found",
		Metadata: map[string]string{"resource": resource},
	}
}

// Forbidden reports an ownership or role violation.
func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

// Invalid reports a bad request payload or parameter.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, message)
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
