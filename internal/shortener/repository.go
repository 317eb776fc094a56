package shortener

import "context"

// Repository defines the persistence operations the Service depends on.
type Repository interface {
	// FindByOriginalURL returns ErrNotFound when the URL has not been shortened.
	FindByOriginalURL(ctx context.Context, originalURL string) (*ShortLink, error)
	// FindByCode returns ErrNotFound when no link has the code.
	FindByCode(ctx context.Context, code Code) (*ShortLink, error)
	// Save persists a new link and assigns its ID. It returns ErrDuplicate when a link with
	// the same original URL or code already exists.
	Save(ctx context.Context, link *ShortLink) error
}
