package session

import "errors"

// Client errors: the caller must re-authenticate. Never retried.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidToken     = errors.New("invalid access token")
	ErrTokenExpired     = errors.New("access token expired")
	ErrIdentityMismatch = errors.New("provider identity mismatch")
)

// Infrastructure error: fatal to the current operation, no partial state is
// considered committed.
var ErrStoreUnavailable = errors.New("token store unavailable")

// ErrNotFound is the token store's answer for an absent or expired record.
// The manager translates it into the client error fitting the operation.
var ErrNotFound = errors.New("record not found")

