package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so HTTP and job layers can react without
// string matching.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindCategoryConflict  Kind = "category_conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindAlreadyDecided    Kind = "already_decided"
	KindNotFound          Kind = "not_found"
	KindDataSource        Kind = "data_source"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperr values by kind alone, so callers can
// compare against a bare New(kind, "") sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

func CategoryConflict(format string, args ...interface{}) *Error {
	return Newf(KindCategoryConflict, format, args...)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return Newf(KindInvalidTransition, format, args...)
}

func AlreadyDecided(format string, args ...interface{}) *Error {
	return Newf(KindAlreadyDecided, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

func DataSource(msg string, err error) *Error {
	return Wrap(KindDataSource, msg, err)
}

func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}

// KindOf extracts the kind from any error chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e != nil && e.Kind == kind
}
