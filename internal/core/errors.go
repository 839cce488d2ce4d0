package core

import "errors"

var (
	// ErrAuthInvalid indicates malformed or invalid API credentials. Never retried.
	ErrAuthInvalid = errors.New("invalid credentials")
	// ErrServiceUnavailable indicates the venue reports maintenance. Never retried.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrBelowMinimum indicates the order volume is below the venue minimum.
	ErrBelowMinimum = errors.New("volume below minimum order size")
	// ErrUnknownMinimum indicates no minimum order size is known for the asset.
	ErrUnknownMinimum = errors.New("minimum order size unknown")
	// ErrUndefinedState indicates the venue returned neither an error nor a
	// transaction id for a placed order. Requires manual follow-up.
	ErrUndefinedState = errors.New("undefined state: no error and no txid")
)
