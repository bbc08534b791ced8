package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"mcaptracker/internal/model"
	"mcaptracker/internal/repository"
)

// Fetcher resolves a token address to a market cap. ok=false means unknown
// this call; the token is skipped until the next tick.
type Fetcher interface {
	FetchMarketCap(ctx context.Context, address string) (float64, bool)
}

// Refresher periodically refreshes market caps for every token that has an
// address. Tokens are processed strictly sequentially with pacing between
// requests to stay under the provider's implicit rate limit.
type Refresher struct {
	repo     repository.TokenRepository
	fetcher  Fetcher
	logger   *logrus.Logger
	interval time.Duration
	limiter  *rate.Limiter

	// OnUpdate, when set, receives every token whose caps were refreshed.
	OnUpdate func(model.Token)
}

func NewRefresher(
	repo repository.TokenRepository,
	fetcher Fetcher,
	logger *logrus.Logger,
	interval time.Duration,
	fetchDelay time.Duration,
) *Refresher {
	return &Refresher{
		repo:     repo,
		fetcher:  fetcher,
		logger:   logger,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(fetchDelay), 1),
	}
}

// Run blocks until ctx is cancelled. Ticks never overlap: a slow tick delays
// the next one rather than running concurrently with it.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.WithField("interval", r.interval).Info("Market cap refresher started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping market cap refresher")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	tokens, err := r.repo.ListWithAddress(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list tokens for refresh")
		return
	}
	if len(tokens) == 0 {
		return
	}

	for _, token := range tokens {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		r.refreshOne(ctx, token)
	}
}

// refreshOne is fully self-contained: a failure here never aborts the
// remaining tokens in the tick.
func (r *Refresher) refreshOne(ctx context.Context, token model.Token) {
	capValue, ok := r.fetcher.FetchMarketCap(ctx, *token.Address)
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"token":   token.Name,
			"address": *token.Address,
		}).Debug("Market cap unknown, skipping until next tick")
		return
	}

	highest := token.HighestMarketCap
	if capValue > highest {
		highest = capValue
	}

	if err := r.repo.UpdateMarketCaps(ctx, token.ID, capValue, highest); err != nil {
		r.logger.WithError(err).WithField("token", token.Name).Error("Failed to persist refreshed market cap")
		return
	}

	if r.OnUpdate != nil {
		token.CurrentMarketCap = &capValue
		token.HighestMarketCap = highest
		r.OnUpdate(token)
	}
}
