package shortener

import "time"

// Code represents a short link code.
type Code string

// DefaultTTL is how long a link resolves after it was created.
const DefaultTTL = 10 * time.Minute

// ShortLink maps an original URL to its code. It is never modified once saved.
type ShortLink struct {
	ID          int64 // assigned by the store, zero until saved
	OriginalURL string
	Code        Code
	CreatedAt   time.Time
}

// ExpiresAt returns the instant from which the link no longer resolves.
func (l *ShortLink) ExpiresAt(ttl time.Duration) time.Time {
	return l.CreatedAt.Add(ttl)
}

// Expired reports whether the link has lapsed at now.
func (l *ShortLink) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(l.ExpiresAt(ttl))
}
