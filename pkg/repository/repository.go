package repository

import (
	"context"

	"github.com/smallbiznis/pricerules/pkg/db/option"
)

// Store is a generic gorm-backed table whose rows are identified by a natural
// unique key rather than by their primary key.
type Store[T any] interface {
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	// Upsert inserts resource or, when a row with the same key exists,
	// overwrites the key's update columns. resource is reloaded from the
	// stored row afterwards.
	Upsert(ctx context.Context, resource *T) error
}

// UniqueKey describes the unique index a Store upserts against.
type UniqueKey[T any] struct {
	Columns []string
	Updates []string
	Lookup  func(resource *T) *T
}
