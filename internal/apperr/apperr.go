// Package apperr provides the coded error taxonomy shared by the room
// coordinator and its transports.
package apperr

import (
	"errors"
	"net/http"
)

// Kind groups error codes by how a caller is expected to react.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindInternal           Kind = "INTERNAL"
)

// HTTPStatus maps a kind to the status code the HTTP API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindPreconditionFailed:
		return http.StatusConflict
	case KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code is a machine-readable error code.
type Code string

const (
	CodeRoomNotFound       Code = "ROOM_NOT_FOUND"
	CodeUnknownConnection  Code = "UNKNOWN_CONNECTION"
	CodeNotHost            Code = "NOT_HOST"
	CodeAlreadyStarted     Code = "ALREADY_STARTED"
	CodeTooFewMembers      Code = "TOO_FEW_MEMBERS"
	CodeGameInProgress     Code = "GAME_IN_PROGRESS"
	CodeAlreadyInRoom      Code = "ALREADY_IN_ROOM"
	CodeRoleUnavailable    Code = "ROLE_UNAVAILABLE"
	CodeInvalidTarget      Code = "INVALID_TARGET"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidMessage     Code = "INVALID_MESSAGE"
	CodeCodeSpaceExhausted Code = "CODE_SPACE_EXHAUSTED"
	CodeInternal           Code = "INTERNAL"
)

// Error is the domain error type.
type Error struct {
	Kind    Kind   // How the caller should react
	Code    Code   // Machine-readable error code
	Message string // Human-readable reason, safe to show to players
	Cause   error  // Wrapped underlying error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a kind, code and message.
func New(kind Kind, code Code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of the first domain error in err's chain.
// Errors outside the taxonomy are reported as KindInternal.
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

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrRoomNotFound      = New(KindNotFound, CodeRoomNotFound, "room not found")
	ErrUnknownConnection = New(KindNotFound, CodeUnknownConnection, "unknown connection")
	ErrNotHost           = New(KindPermissionDenied, CodeNotHost, "only the host can start the game")
	ErrAlreadyStarted    = New(KindPreconditionFailed, CodeAlreadyStarted, "game already started")
	ErrTooFewMembers     = New(KindPreconditionFailed, CodeTooFewMembers, "not enough players to start")
	ErrGameInProgress    = New(KindPreconditionFailed, CodeGameInProgress, "game already in progress")
	ErrAlreadyInRoom     = New(KindPreconditionFailed, CodeAlreadyInRoom, "connection already belongs to a room")
	ErrRoleUnavailable   = New(KindPreconditionFailed, CodeRoleUnavailable, "role unavailable")
	ErrInvalidTarget     = New(KindNotFound, CodeInvalidTarget, "no such role in this game")
	ErrInvalidAmount     = New(KindValidationFailed, CodeInvalidAmount, "invalid amount")
	ErrInvalidMessage    = New(KindValidationFailed, CodeInvalidMessage, "invalid message")
)
