package shortener

import "errors"

var (
	// ErrNotFound is returned when no link matches a lookup.
	ErrNotFound = errors.New("short link not found")
	// ErrExpired is returned when a link exists but its validity window has passed.
	ErrExpired = errors.New("short link has expired")
	// ErrCodeCollision is returned when the code derived for a URL already belongs to a
	// different URL.
	ErrCodeCollision = errors.New("short code collision detected")
	// ErrDuplicate is returned by a Repository when a save would break the uniqueness of the
	// original URL or the code.
	ErrDuplicate = errors.New("short link already exists")
)
