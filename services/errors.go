package services

import "errors"

// Service error taxonomy. Every workflow operation returns one of these
// (wrapped with detail); callers map them to HTTP statuses with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
)
