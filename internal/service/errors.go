package service

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so transports can map them
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

var (
	// Validation
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrEmptyInviteCode    = errors.New("invite code is required")
	ErrNotFamilyMember    = errors.New("user is not a member of this family")
	ErrTitleRequired      = errors.New("title is required")
	ErrFieldTooLong       = errors.New("field is too long")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidAvatarColor = errors.New("invalid avatar color")
	ErrSameUser           = errors.New("a user cannot be paired with themselves")
	ErrFamilyIncomplete   = errors.New("family needs two members")

	// Not found
	ErrUserNotFound        = errors.New("user not found")
	ErrFamilyNotFound      = errors.New("family not found")
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrJoinRequestNotFound = errors.New("join request not found or already handled")
	ErrSavingsGoalNotFound = errors.New("savings goal not found")

	// Conflict
	ErrAlreadyInFamily     = errors.New("user already belongs to a family")
	ErrPendingRequest      = errors.New("user already has a pending join request")
	ErrFamilyFull          = errors.New("family already has two members")
	ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")
	ErrEmailTaken          = errors.New("email is already registered")
)

// Error is a classified domain error. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage is the text to show an end user
func (e *Error) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func newError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Err: err, Message: message}
}

func validationError(err error, message string) *Error {
	return newError(KindValidation, err, message)
}

func notFoundError(err error, message string) *Error {
	return newError(KindNotFound, err, message)
}

func conflictError(err error, message string) *Error {
	return newError(KindConflict, err, message)
}

// fieldError classifies a failed input check under sentinel, keeping the
// check's field message for users
func fieldError(sentinel, err error) *Error {
	return validationError(fmt.Errorf("%w: %w", sentinel, err), err.Error())
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }

// User-facing messages
const (
	MsgInvalidCode     = "Invalid code, please check and retry"
	MsgFamilyComplete  = "This family is already complete"
	MsgAlreadyHandled  = "This request was already handled"
	MsgAlreadyInFamily = "You already belong to a family"
	MsgPendingRequest  = "You already have a pending request"
	MsgInvalidAmount   = "Please enter an amount greater than zero"
	MsgAmountTooLarge  = "This amount is too large"
)
