package common

import "errors"

// Failure categories shared by every custody module. Module errors wrap one
// of these so callers can classify them with errors.Is.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrDeadline      = errors.New("deadline violation")
	ErrInvalidValue  = errors.New("invalid value")
	ErrCustody       = errors.New("custody transfer failed")

	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)
