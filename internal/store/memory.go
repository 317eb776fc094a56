package store

import (
	"context"
	"sync"

	"github.com/serroba/link-converter/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository.
type MemoryStore struct {
	mu     sync.RWMutex
	links  map[shortener.Code]shortener.ShortLink // code -> link
	byURL  map[string]shortener.Code              // original url -> code
	nextID int64
}

// NewMemoryStore creates a new in-memory link store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[shortener.Code]shortener.ShortLink),
		byURL: make(map[string]shortener.Code),
	}
}

func (m *MemoryStore) Save(_ context.Context, link *shortener.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.Code]; ok {
		return shortener.ErrDuplicate
	}

	if _, ok := m.byURL[link.OriginalURL]; ok {
		return shortener.ErrDuplicate
	}

	m.nextID++
	link.ID = m.nextID

	m.links[link.Code] = *link
	m.byURL[link.OriginalURL] = link.Code

	return nil
}

func (m *MemoryStore) FindByCode(_ context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return &link, nil
}

func (m *MemoryStore) FindByOriginalURL(_ context.Context, originalURL string) (*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.byURL[originalURL]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	link := m.links[code]

	return &link, nil
}

// Len returns the number of stored links.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.links)
}

// Compile-time check.
var _ shortener.Repository = (*MemoryStore)(nil)
