package service

import "errors"

var (
	// ErrValidation signals malformed input from the caller.
	ErrValidation = errors.New("validation failed")

	// ErrSlugTaken signals that a requested custom slug already occupies
	// the combined code namespace. Custom slugs are intentional and are
	// never auto-mutated, so there is no retry.
	ErrSlugTaken = errors.New("custom slug is already taken")

	// ErrCodeSpaceExhausted signals that code generation collided on
	// every attempt within the retry bound. Transient; safe for the
	// client to retry.
	ErrCodeSpaceExhausted = errors.New("unable to allocate a unique short code")

	// ErrInvalidCodeLength signals a misconfigured code generator.
	ErrInvalidCodeLength = errors.New("code length must be positive")
)
