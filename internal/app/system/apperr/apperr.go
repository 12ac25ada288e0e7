// Package apperr defines the error taxonomy shared by crew's workflows.
//
// Every failure a caller can act on is an *Error with a Kind (which decides
// the HTTP status and whether retrying makes sense) and a stable Code.
// errors.Is matches on Code, so wrapped sentinels compare equal.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/crewfund/crew/internal/app/system/docstore"
)

// Kind groups errors by how a caller should react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindConflict
	KindNotFound
	KindUnavailable
	KindPermission
	KindRateLimited
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition_failed"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindPermission:
		return "permission_denied"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return "internal"
}

// Retryable reports whether repeating the same call may succeed.
func (k Kind) Retryable() bool {
	return k == KindConflict || k == KindUnavailable
}

// Error is a classified failure with a user-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidInput = newErr(KindValidation, "invalid_input", "the request is missing or has invalid fields")
	ErrOutOfRange   = newErr(KindValidation, "out_of_range", "amount is outside the allowed range")

	ErrInsufficientFunds    = newErr(KindPrecondition, "insufficient_funds", "insufficient funds in wallet")
	ErrGoalNotReached       = newErr(KindPrecondition, "goal_not_reached", "the project has not reached its funding goal")
	ErrGoalAlreadyReached   = newErr(KindPrecondition, "goal_already_reached", "the project already reached its funding goal")
	ErrProjectClosed        = newErr(KindPrecondition, "project_closed", "the project is not accepting donations")
	ErrProjectModerated     = newErr(KindPrecondition, "project_moderated", "the project was hidden or removed by moderation")
	ErrAlreadyWithdrawn     = newErr(KindPrecondition, "already_withdrawn", "project funds were already withdrawn")
	ErrNothingToReclaim     = newErr(KindPrecondition, "nothing_to_reclaim", "there are no withdrawable funds to reclaim")
	ErrCardNotApproved      = newErr(KindPrecondition, "card_not_approved", "you do not have an approved virtual card")
	ErrCardMismatch         = newErr(KindPrecondition, "card_mismatch", "card details do not match your virtual card")
	ErrCardAlreadyApproved  = newErr(KindPrecondition, "card_already_approved", "you already have an approved virtual card")
	ErrPendingRequestExists = newErr(KindPrecondition, "pending_request_exists", "a request is already pending review")
	ErrAlreadyResolved      = newErr(KindPrecondition, "already_resolved", "the request was already resolved")
	ErrNotVerified          = newErr(KindPrecondition, "not_verified", "identity verification and a display name are required")
	ErrAlreadyVerified      = newErr(KindPrecondition, "already_verified", "your identity is already verified")
	ErrSelfRoleChange       = newErr(KindPrecondition, "self_role_change", "you cannot change your own role")

	ErrRateLimitExceeded = newErr(KindRateLimited, "rate_limited", "too many requests, try again later")

	ErrPermissionDenied = newErr(KindPermission, "permission_denied", "you do not have permission to do that")
	ErrUnauthenticated  = newErr(KindUnauthenticated, "unauthenticated", "sign in required")

	ErrNotFound    = newErr(KindNotFound, "not_found", "not found")
	ErrConflict    = newErr(KindConflict, "conflict", "the data changed while processing; please retry")
	ErrUnavailable = newErr(KindUnavailable, "unavailable", "the service is temporarily unavailable; please retry")
	ErrInternal    = newErr(KindInternal, "internal", "internal error")
)

// Invalid returns ErrInvalidInput with a specific message.
func Invalid(format string, args ...any) *Error {
	return ErrInvalidInput.WithMessage(format, args...)
}

// NotFound returns ErrNotFound naming the missing thing.
func NotFound(what string) *Error {
	return ErrNotFound.WithMessage("%s not found", what)
}

// From classifies any error. Store sentinels become their apperr
// counterparts; unknown errors become KindInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound.Wrap(err)
	case errors.Is(err, docstore.ErrConflict), errors.Is(err, docstore.ErrExists):
		return ErrConflict.Wrap(err)
	case errors.Is(err, docstore.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ErrUnavailable.Wrap(err)
	}
	return ErrInternal.Wrap(err)
}

// KindOf returns the Kind of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return From(err).Kind
}
