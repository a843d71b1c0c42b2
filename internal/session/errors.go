package session

import "errors"

var (
	// ErrInvalidState is returned when a stored session cannot be decoded into a legal state.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrMissingUserID is returned when a store is called without a user id.
	ErrMissingUserID = errors.New("session: user id is required")
)
