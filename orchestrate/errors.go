package orchestrate

import "errors"

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)
