package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/pricerules/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidUniqueKey = errors.New("invalid_unique_key")

type store[T any] struct {
	db  *gorm.DB
	key UniqueKey[T]
}

func ProvideStore[T any](db *gorm.DB, key UniqueKey[T]) Store[T] {
	return &store[T]{db: db, key: key}
}

// FindOne returns nil, nil when nothing matches.
func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	stmt := r.db.WithContext(ctx).Where(query)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Upsert(ctx context.Context, resource *T) error {
	if len(r.key.Columns) == 0 || len(r.key.Updates) == 0 || r.key.Lookup == nil {
		return ErrInvalidUniqueKey
	}

	columns := make([]clause.Column, 0, len(r.key.Columns))
	for _, name := range r.key.Columns {
		columns = append(columns, clause.Column{Name: name})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   columns,
			DoUpdates: clause.AssignmentColumns(r.key.Updates),
		}).Create(resource).Error
		if err != nil {
			return err
		}

		var stored T
		if err := tx.Where(r.key.Lookup(resource)).First(&stored).Error; err != nil {
			return err
		}
		*resource = stored
		return nil
	})
}
