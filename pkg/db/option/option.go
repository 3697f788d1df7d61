package option

import (
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement (ordering, paging).
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// SortBy is a validated column/direction pair.
type SortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy validates the requested column against allowed and falls back to created_at desc.
func WithQuerySortBy(column, order string, allowed map[string]bool) SortBy {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" || !allowed[column] {
		return SortBy{Column: "created_at", Desc: true}
	}
	return SortBy{
		Column: column,
		Desc:   !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

func WithSortBy(sort SortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		direction := "asc"
		if sort.Desc {
			direction = "desc"
		}
		return db.Order(sort.Column + " " + direction + ", id " + direction)
	})
}

func WithOrder(clause string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(clause)
	})
}

func WithLimitOffset(limit, offset int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	})
}
