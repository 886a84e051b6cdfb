// Package apperrors defines the error kinds surfaced by the record services.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Kinds are stable and safe to switch on.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindNotFound        Kind = "NOT_FOUND"
	KindForbidden       Kind = "FORBIDDEN"
	KindConflict        Kind = "CONFLICT"
	KindIntegrity       Kind = "INTEGRITY"
	KindBackup          Kind = "BACKUP"
	KindInternal        Kind = "INTERNAL"
)

// Error carries a Kind alongside a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperrors.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrIntegrity       = &Error{Kind: KindIntegrity}
	ErrBackup          = &Error{Kind: KindBackup}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func Unauthenticatedf(format string, args ...interface{}) *Error {
	return newf(KindUnauthenticated, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func Integrityf(format string, args ...interface{}) *Error {
	return newf(KindIntegrity, format, args...)
}

// Backup wraps a failure of the backup collaborator. Automatic backups only log it.
func Backup(err error, message string) *Error {
	return &Error{Kind: KindBackup, Message: message, Err: err}
}

// Wrap attaches a kind to an arbitrary error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
