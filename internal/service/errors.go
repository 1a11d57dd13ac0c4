package service

import "errors"

var (
	// ErrNotFound is returned by direct reads. Lifecycle operations treat a missing
	// request as already handled instead.
	ErrNotFound = errors.New("not found")

	ErrNotPending          = errors.New("request is no longer pending")
	ErrChainCorrupt        = errors.New("approval chain has no step at the current level")
	ErrRequesterUnresolved = errors.New("requester could not be resolved")
	ErrIDExhausted         = errors.New("could not allocate a unique request id")
	ErrFieldNotMutable     = errors.New("field cannot be changed after creation")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("actor is not allowed to act on this request")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
)
