package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fxRate struct {
	ID    int64  `gorm:"primaryKey"`
	Base  string `gorm:"size:8;not null;uniqueIndex:ux_fx_rates_pair,priority:1"`
	Quote string `gorm:"size:8;not null;uniqueIndex:ux_fx_rates_pair,priority:2"`
	Rate  string `gorm:"size:32;not null"`
}

func fxRateKey() UniqueKey[fxRate] {
	return UniqueKey[fxRate]{
		Columns: []string{"base", "quote"},
		Updates: []string{"rate"},
		Lookup: func(r *fxRate) *fxRate {
			return &fxRate{Base: r.Base, Quote: r.Quote}
		},
	}
}

func setupStore(t *testing.T, key UniqueKey[fxRate]) Store[fxRate] {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&fxRate{}))
	return ProvideStore[fxRate](db, key)
}

func TestUpsertInsertsThenOverwrites(t *testing.T) {
	store := setupStore(t, fxRateKey())
	ctx := context.Background()

	first := &fxRate{ID: 1, Base: "USD", Quote: "IDR", Rate: "16000"}
	require.NoError(t, store.Upsert(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	second := &fxRate{ID: 2, Base: "USD", Quote: "IDR", Rate: "16250"}
	require.NoError(t, store.Upsert(ctx, second))
	assert.Equal(t, int64(1), second.ID)
	assert.Equal(t, "16250", second.Rate)

	other := &fxRate{ID: 3, Base: "EUR", Quote: "IDR", Rate: "17500"}
	require.NoError(t, store.Upsert(ctx, other))
	assert.Equal(t, int64(3), other.ID)

	got, err := store.FindOne(ctx, &fxRate{Base: "USD", Quote: "IDR"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "16250", got.Rate)
}

func TestFindOneMissing(t *testing.T) {
	store := setupStore(t, fxRateKey())

	got, err := store.FindOne(context.Background(), &fxRate{Base: "JPY"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertRequiresKey(t *testing.T) {
	store := setupStore(t, UniqueKey[fxRate]{})

	err := store.Upsert(context.Background(), &fxRate{ID: 1, Base: "USD", Quote: "IDR", Rate: "1"})
	assert.ErrorIs(t, err, ErrInvalidUniqueKey)
}
