package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mcaptracker/internal/model"
)

func newTestRepo(t *testing.T) TokenRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Token{}))

	return NewGormTokenRepository(db)
}

func strPtr(s string) *string {
	return &s
}

func TestUpsertCreatesRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Upsert(ctx, &model.Token{
		Name:              "PEPE",
		Link:              "https://dexscreener.com/solana/abc",
		Address:           strPtr("abc"),
		CapturedMarketCap: 1000,
		HighestMarketCap:  1000,
		CapturedTimestamp: 1700000000,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	row, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, float64(1000), row.CapturedMarketCap)
	require.Equal(t, float64(1000), row.HighestMarketCap)
	require.Nil(t, row.CurrentMarketCap)
	require.Equal(t, int64(1700000000), row.CapturedTimestamp)
}

func TestUpsertSameLinkUpdatesExistingRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &model.Token{
		Name:              "PEPE",
		Link:              "https://dexscreener.com/solana/abc",
		CapturedMarketCap: 1000,
		HighestMarketCap:  1000,
		CapturedTimestamp: 1700000000,
	})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &model.Token{
		Name:              "PEPE",
		Link:              "https://dexscreener.com/solana/abc",
		CapturedMarketCap: 5000,
		HighestMarketCap:  5000,
		CapturedTimestamp: 1800000000,
	})
	require.NoError(t, err)
	require.Equal(t, first, second, "re-ingesting the same link must not create a new row")

	row, err := repo.GetByID(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, row)

	// Captured values are insert-only.
	require.Equal(t, float64(1000), row.CapturedMarketCap)
	require.Equal(t, int64(1700000000), row.CapturedTimestamp)

	// Current follows the new value, highest ratchets up.
	require.NotNil(t, row.CurrentMarketCap)
	require.Equal(t, float64(5000), *row.CurrentMarketCap)
	require.Equal(t, float64(5000), row.HighestMarketCap)
}

func TestUpsertNeverLowersHighest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	link := "https://dexscreener.com/solana/abc"
	_, err := repo.Upsert(ctx, &model.Token{Name: "PEPE", Link: link, CapturedMarketCap: 9000, HighestMarketCap: 9000, CapturedTimestamp: 1})
	require.NoError(t, err)

	id, err := repo.Upsert(ctx, &model.Token{Name: "PEPE", Link: link, CapturedMarketCap: 200, HighestMarketCap: 200, CapturedTimestamp: 2})
	require.NoError(t, err)

	row, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, float64(9000), row.HighestMarketCap)
	require.Equal(t, float64(200), *row.CurrentMarketCap)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	row, err := repo.GetByID(context.Background(), 12345)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestListAllNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, link := range []string{
		"https://dexscreener.com/solana/first",
		"https://dexscreener.com/solana/second",
		"https://dexscreener.com/solana/third",
	} {
		_, err := repo.Upsert(ctx, &model.Token{
			Name:              link,
			Link:              link,
			CapturedMarketCap: float64(i + 1),
			HighestMarketCap:  float64(i + 1),
			CapturedTimestamp: int64(i),
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	tokens, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	require.Equal(t, "https://dexscreener.com/solana/third", tokens[0].Link)
	require.Equal(t, "https://dexscreener.com/solana/first", tokens[2].Link)
}

func TestListWithAddress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &model.Token{Name: "a", Link: "l1", Address: strPtr("addr1"), CapturedMarketCap: 1, HighestMarketCap: 1, CapturedTimestamp: 1})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &model.Token{Name: "b", Link: "l2", CapturedMarketCap: 1, HighestMarketCap: 1, CapturedTimestamp: 1})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &model.Token{Name: "c", Link: "l3", Address: strPtr(""), CapturedMarketCap: 1, HighestMarketCap: 1, CapturedTimestamp: 1})
	require.NoError(t, err)

	tokens, err := repo.ListWithAddress(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "addr1", *tokens[0].Address)
}

func TestUpdateMarketCaps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Upsert(ctx, &model.Token{Name: "a", Link: "l1", CapturedMarketCap: 100, HighestMarketCap: 100, CapturedTimestamp: 1})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateMarketCaps(ctx, id, 250, 250))

	row, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, float64(250), *row.CurrentMarketCap)
	require.Equal(t, float64(250), row.HighestMarketCap)
	require.Equal(t, float64(100), row.CapturedMarketCap)
}
