package scheduler

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mcaptracker/internal/model"
	"mcaptracker/internal/repository"
)

// mapFetcher returns caps for known addresses and "unknown" for the rest.
type mapFetcher struct {
	caps map[string]float64
}

func (f *mapFetcher) FetchMarketCap(_ context.Context, address string) (float64, bool) {
	value, ok := f.caps[address]
	return value, ok
}

func newTestRepo(t *testing.T) repository.TokenRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Token{}))
	return repository.NewGormTokenRepository(db)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seedToken(t *testing.T, repo repository.TokenRepository, name, address string, capValue float64) uint {
	t.Helper()
	addr := address
	token := &model.Token{
		Name:              name,
		Link:              "https://dexscreener.com/solana/" + address,
		CapturedMarketCap: capValue,
		HighestMarketCap:  capValue,
		CapturedTimestamp: 1700000000,
	}
	if address != "" {
		token.Address = &addr
	}
	id, err := repo.Upsert(context.Background(), token)
	require.NoError(t, err)
	return id
}

func TestRefreshAllUpdatesKnownTokens(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id1 := seedToken(t, repo, "one", "addr1", 100)
	id2 := seedToken(t, repo, "two", "addr2", 100)
	id3 := seedToken(t, repo, "three", "addr3", 100)

	fetcher := &mapFetcher{caps: map[string]float64{
		"addr1": 150,
		"addr3": 90,
	}}
	r := NewRefresher(repo, fetcher, testLogger(), time.Second, time.Millisecond)
	r.refreshAll(ctx)

	// addr1: fetched above the previous highest, both fields move.
	row1, err := repo.GetByID(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, row1.CurrentMarketCap)
	require.Equal(t, float64(150), *row1.CurrentMarketCap)
	require.Equal(t, float64(150), row1.HighestMarketCap)

	// addr2: provider failed, row untouched.
	row2, err := repo.GetByID(ctx, id2)
	require.NoError(t, err)
	require.Nil(t, row2.CurrentMarketCap)
	require.Equal(t, float64(100), row2.HighestMarketCap)

	// addr3: fetched below the highest, current drops but highest holds.
	row3, err := repo.GetByID(ctx, id3)
	require.NoError(t, err)
	require.NotNil(t, row3.CurrentMarketCap)
	require.Equal(t, float64(90), *row3.CurrentMarketCap)
	require.Equal(t, float64(100), row3.HighestMarketCap)
}

func TestRefreshAllSkipsTokensWithoutAddress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := seedToken(t, repo, "no-address", "", 100)

	fetcher := &mapFetcher{caps: map[string]float64{"": 999}}
	r := NewRefresher(repo, fetcher, testLogger(), time.Second, time.Millisecond)
	r.refreshAll(ctx)

	row, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, row.CurrentMarketCap)
}

func TestRefreshHighestIsMonotonic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := seedToken(t, repo, "one", "addr1", 100)

	fetcher := &mapFetcher{caps: map[string]float64{"addr1": 300}}
	r := NewRefresher(repo, fetcher, testLogger(), time.Second, time.Millisecond)
	r.refreshAll(ctx)

	fetcher.caps["addr1"] = 50
	r.refreshAll(ctx)

	row, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, float64(300), row.HighestMarketCap)
	require.Equal(t, float64(50), *row.CurrentMarketCap)
}

func TestRefreshPublishesUpdates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedToken(t, repo, "one", "addr1", 100)
	seedToken(t, repo, "two", "addr2", 100)

	fetcher := &mapFetcher{caps: map[string]float64{"addr1": 150}}
	r := NewRefresher(repo, fetcher, testLogger(), time.Second, time.Millisecond)

	var updates []model.Token
	r.OnUpdate = func(token model.Token) {
		updates = append(updates, token)
	}
	r.refreshAll(ctx)

	require.Len(t, updates, 1, "only refreshed tokens are published")
	require.Equal(t, "one", updates[0].Name)
	require.Equal(t, float64(150), *updates[0].CurrentMarketCap)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := newTestRepo(t)

	r := NewRefresher(repo, &mapFetcher{}, testLogger(), 10*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
