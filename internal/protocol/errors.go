package protocol

import "errors"

var (
	// ErrParse is returned for malformed command records. The record is
	// dropped with no effect.
	ErrParse = errors.New("malformed message")

	// ErrUnknownAction is returned for command records with an action the
	// dispatcher does not handle. Such records are ignored.
	ErrUnknownAction = errors.New("unknown action")
)
