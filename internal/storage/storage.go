// Package storage defines the durable key-value contract that line stores and
// the catalog cache snapshot into.
//
// Each key holds one serialized, ordered sequence of records. Writes replace
// the whole value; there is no partial update and no transaction log.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// Canonical snapshot keys. Every store owns exactly one key.
const (
	KeyCart     = "cart"
	KeyBasket   = "basket"
	KeyProducts = "products"
	KeyPackages = "packages"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("snapshot not found")

// KV is a durable key-value store local to the client.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
