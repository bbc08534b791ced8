package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mcaptracker/internal/model"
	"mcaptracker/internal/repository"
)

// ErrValidation marks errors caused by bad client input. Handlers map it to
// a 400 response; everything else is a storage failure.
var ErrValidation = errors.New("validation failed")

const addressMarker = "/solana/"

var marketCapPattern = regexp.MustCompile(`^[\d.]+[KMB]?$`)

type AddTokenInput struct {
	Name      string
	Link      string
	Address   *string
	Timestamp int64
	Liquidity *string
	MarketCap string
	Narrative *string
}

type TokenService struct {
	repo repository.TokenRepository
}

func NewTokenService(repo repository.TokenRepository) *TokenService {
	return &TokenService{
		repo: repo,
	}
}

// AddToken validates and normalizes an ingested record, then performs the
// insert-or-update keyed on link. Returns the row id.
func (ts *TokenService) AddToken(ctx context.Context, in AddTokenInput) (uint, error) {
	capValue, err := ParseMarketCap(in.MarketCap)
	if err != nil {
		return 0, err
	}

	address := in.Address
	if address == nil || *address == "" {
		if extracted := ExtractAddress(in.Link); extracted != "" {
			address = &extracted
		} else {
			address = nil
		}
	}

	timestamp := in.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	token := &model.Token{
		Name:              in.Name,
		Link:              in.Link,
		Address:           address,
		CapturedMarketCap: capValue,
		HighestMarketCap:  capValue,
		CapturedTimestamp: timestamp,
		Liquidity:         in.Liquidity,
		Narrative:         in.Narrative,
	}

	return ts.repo.Upsert(ctx, token)
}

// ListTokens returns all tracked tokens as client views, newest first.
func (ts *TokenService) ListTokens(ctx context.Context) ([]model.TokenView, error) {
	tokens, err := ts.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.TokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, ToView(t))
	}
	return views, nil
}

// GetToken returns (nil, nil) when the id is unknown.
func (ts *TokenService) GetToken(ctx context.Context, id uint) (*model.TokenView, error) {
	token, err := ts.repo.GetByID(ctx, id)
	if err != nil || token == nil {
		return nil, err
	}
	view := ToView(*token)
	return &view, nil
}

// ParseMarketCap resolves a formatted market-cap string like "$2.4K" or
// "19000" into a positive number. Currency symbols and thousands separators
// are stripped before matching; K/M/B suffixes are case-insensitive.
func ParseMarketCap(raw string) (float64, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if !marketCapPattern.MatchString(cleaned) {
		return 0, fmt.Errorf("%w: market_cap %q is not a number", ErrValidation, raw)
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "K"):
		multiplier = 1e3
		cleaned = strings.TrimSuffix(cleaned, "K")
	case strings.HasSuffix(cleaned, "M"):
		multiplier = 1e6
		cleaned = strings.TrimSuffix(cleaned, "M")
	case strings.HasSuffix(cleaned, "B"):
		multiplier = 1e9
		cleaned = strings.TrimSuffix(cleaned, "B")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: market_cap %q is not a number", ErrValidation, raw)
	}

	value *= multiplier
	if value <= 0 {
		return 0, fmt.Errorf("%w: market_cap must be positive", ErrValidation)
	}
	return value, nil
}

// ExtractAddress pulls the on-chain address out of a DexScreener-style link,
// e.g. https://dexscreener.com/solana/7ybn...?utm=x -> 7ybn...
// Returns "" when the link carries no address.
func ExtractAddress(link string) string {
	_, after, found := strings.Cut(link, addressMarker)
	if !found {
		return ""
	}
	address := after
	if i := strings.IndexAny(address, "?#"); i >= 0 {
		address = address[:i]
	}
	address = strings.TrimSpace(address)
	if i := strings.Index(address, "/"); i >= 0 {
		address = address[:i]
	}
	return address
}

// PercentChange is the gain of highest over captured, in percent. Zero when
// the captured baseline is not strictly positive.
func PercentChange(captured, highest float64) float64 {
	if captured <= 0 {
		return 0
	}
	return (highest - captured) / captured * 100
}

func ToView(t model.Token) model.TokenView {
	return model.TokenView{
		ID:                t.ID,
		Name:              t.Name,
		Link:              t.Link,
		Address:           t.Address,
		CapturedMcap:      t.CapturedMarketCap,
		CurrentMcap:       t.CurrentMarketCap,
		HighestMcap:       t.HighestMarketCap,
		PercentChange:     PercentChange(t.CapturedMarketCap, t.HighestMarketCap),
		CapturedTimestamp: t.CapturedTimestamp,
		Liquidity:         t.Liquidity,
		Narrative:         t.Narrative,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}
