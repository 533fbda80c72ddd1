package apperr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies failures of the import engine.
type Kind string

const (
	KindMalformedInput         Kind = "malformed_input"
	KindValidation             Kind = "validation"
	KindDuplicateKey           Kind = "duplicate_key"
	KindDependencyNotSatisfied Kind = "dependency_not_satisfied"
	KindConcurrencyRejected    Kind = "concurrency_rejected"
	KindStorage                Kind = "storage"
	KindNotFound               Kind = "not_found"
	KindInternal               Kind = "internal"
)

// Codes surfaced to API callers.
const (
	CodeMastersRequired  = "MASTERS_REQUIRED"
	CodeImportInProgress = "IMPORT_IN_PROGRESS"
	CodeMalformedInput   = "MALFORMED_INPUT"
	CodeValidation       = "VALIDATION_ERROR"
	CodeDuplicate        = "DUPLICATE_KEY"
	CodeNotFound         = "NOT_FOUND"
	CodeStorage          = "STORAGE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Error is the typed error returned by engine operations.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Stack   errors.StackTrace
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, code, message string, cause error) *Error {
	var st stackTracer
	if cause != nil {
		st, _ = errors.WithStack(cause).(stackTracer)
	} else {
		st, _ = errors.New(message).(stackTracer)
	}
	e := &Error{Kind: kind, Code: code, Message: message, Cause: cause}
	if st != nil {
		e.Stack = st.StackTrace()
	}
	return e
}

func MalformedInput(message string, cause error) *Error {
	return newError(KindMalformedInput, CodeMalformedInput, message, cause)
}

func Validation(message string) *Error {
	return newError(KindValidation, CodeValidation, message, nil)
}

func Duplicate(message string) *Error {
	return newError(KindDuplicateKey, CodeDuplicate, message, nil)
}

func MastersRequired() *Error {
	return newError(KindDependencyNotSatisfied, CodeMastersRequired,
		"First-time master import required. Please upload the masters export first.", nil)
}

func ImportInProgress() *Error {
	return newError(KindConcurrencyRejected, CodeImportInProgress,
		"Another import is already in progress. Please try again later.", nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, CodeNotFound, message, nil)
}

func Storage(message string, cause error) *Error {
	return newError(KindStorage, CodeStorage, message, cause)
}

func Internal(message string, cause error) *Error {
	return newError(KindInternal, CodeInternal, message, cause)
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the API code for err.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
