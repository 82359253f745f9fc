package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Retrieve when no record exists under the key
var ErrNotFound = errors.New("record not found")

// StorageInterface defines the contract for key-value record storage
type StorageInterface interface {
	Store(ctx context.Context, key string, data []byte) error
	Retrieve(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
