package storage

import (
	"context"
	"time"

	"github.com/kylycht/ratebot/model"
)

// Storage interface describes methods of
// currency catalog storage
type Storage interface {
	// Load loads all available currencies
	// from the storage in display order
	Load(ctx context.Context) ([]model.Currency, error)
}

// Cache interface describes non-persistent cache
// storage for upstream quotes
type Cache interface {
	// Get retrieves cached quote for key,
	// false when missing or expired
	Get(ctx context.Context, key string) (float64, bool)

	// Set stores quote for key for ttl
	Set(ctx context.Context, key string, rate float64, ttl time.Duration) error
}

// Static is storage over a fixed currency list
type Static []model.Currency

// Load implements storage.Storage.
func (s Static) Load(_ context.Context) ([]model.Currency, error) {
	out := make([]model.Currency, len(s))
	copy(out, s)
	return out, nil
}

// LoadCatalog loads currencies from s and validates them into a catalog
func LoadCatalog(ctx context.Context, s Storage) (*model.Catalog, error) {
	currencies, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return model.NewCatalog(currencies)
}
