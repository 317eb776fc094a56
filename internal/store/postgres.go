package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/link-converter/internal/shortener"
)

const uniqueViolationCode = "23505"

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Save(ctx context.Context, link *shortener.ShortLink) error {
	query := `
		INSERT INTO short_links (original_url, code, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := p.pool.QueryRow(ctx, query,
		link.OriginalURL,
		string(link.Code),
		link.CreatedAt,
	).Scan(&link.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", shortener.ErrDuplicate, link.Code)
		}

		return err
	}

	return nil
}

func (p *PostgresStore) FindByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	query := `
		SELECT id, original_url, code, created_at
		FROM short_links
		WHERE code = $1
	`

	return p.findOne(ctx, query, string(code))
}

func (p *PostgresStore) FindByOriginalURL(ctx context.Context, originalURL string) (*shortener.ShortLink, error) {
	query := `
		SELECT id, original_url, code, created_at
		FROM short_links
		WHERE original_url = $1
	`

	return p.findOne(ctx, query, originalURL)
}

func (p *PostgresStore) findOne(ctx context.Context, query string, arg string) (*shortener.ShortLink, error) {
	var link shortener.ShortLink

	err := p.pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.OriginalURL,
		&link.Code,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Compile-time check.
var _ shortener.Repository = (*PostgresStore)(nil)
