package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotConfigured = errors.New("object storage not configured")

// ObjectStore keeps uploaded documents outside the database; documents only store the key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type DisabledStore struct{}

func (DisabledStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return ErrNotConfigured
}

func (DisabledStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrNotConfigured
}

func (DisabledStore) Delete(ctx context.Context, key string) error {
	return ErrNotConfigured
}
