package domain

import "errors"

var (
	// ErrUserNotFound signals an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrPostNotFound signals a missing post or a post without an embedding.
	ErrPostNotFound = errors.New("post not found")
	// ErrInvalidUnlike signals an unlike without a prior like record.
	ErrInvalidUnlike = errors.New("post not liked by user")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrStoreUnavailable signals that the durable store is unreachable
	// or a durable write failed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConfig signals an invalid configuration value.
	ErrConfig = errors.New("invalid configuration")
)
