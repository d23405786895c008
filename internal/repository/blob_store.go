package repository

import (
	"context"
	"errors"
	"fmt"

	domrepo "AlphaRadar/internal/domain/repository"
	"AlphaRadar/pkg/cache"
)

// CacheBlobStore keeps the history blob under one key of a cache backend
// (memory, redis or layered). Values never expire.
type CacheBlobStore struct {
	cache cache.Service
	key   string
}

// NewCacheBlobStore creates a blob store over c using key.
func NewCacheBlobStore(c cache.Service, key string) domrepo.BlobStore {
	return &CacheBlobStore{cache: c, key: key}
}

func (s *CacheBlobStore) Load(ctx context.Context) ([]byte, bool, error) {
	var blob string
	if err := s.cache.Get(ctx, s.key, &blob); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load %s: %w", s.key, err)
	}
	return []byte(blob), true, nil
}

func (s *CacheBlobStore) Save(ctx context.Context, blob []byte) error {
	if err := s.cache.Set(ctx, s.key, string(blob), 0); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}
