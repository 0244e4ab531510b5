package services

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned for a missing quote, rule or user.
	ErrNotFound = errors.New("not found")
	// ErrLocked is returned when editing a quote that left the pricing stages.
	ErrLocked = errors.New("quote is locked")
)
