package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mcaptracker/internal/model"
)

type TokenRepository interface {
	// Upsert inserts the token, or, when a row with the same link exists,
	// updates only current/highest market cap. Returns the row id.
	Upsert(ctx context.Context, token *model.Token) (uint, error)

	// ListAll returns every token, newest-created first.
	ListAll(ctx context.Context) ([]model.Token, error)

	// GetByID returns (nil, nil) when no row matches.
	GetByID(ctx context.Context, id uint) (*model.Token, error)

	// ListWithAddress returns tokens eligible for a market-cap refresh.
	ListWithAddress(ctx context.Context) ([]model.Token, error)

	// UpdateMarketCaps persists a refreshed current/highest pair for one row.
	UpdateMarketCaps(ctx context.Context, id uint, current, highest float64) error
}

type gormTokenRepository struct {
	db *gorm.DB
}

func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	return &gormTokenRepository{db: db}
}

func (gtr *gormTokenRepository) Upsert(ctx context.Context, token *model.Token) (uint, error) {
	// Single-statement upsert keyed on the unique link column. Captured cap
	// and captured timestamp are insert-only; highest only ever ratchets up.
	err := gtr.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"current_market_cap": token.CapturedMarketCap,
			"highest_market_cap": gorm.Expr("MAX(highest_market_cap, ?)", token.CapturedMarketCap),
			"updated_at":         time.Now(),
		}),
	}).Create(token).Error
	if err != nil {
		return 0, err
	}

	// On the conflict path the generated id belongs to the existing row, so
	// read it back by link.
	var row model.Token
	if err := gtr.db.WithContext(ctx).Where("link = ?", token.Link).First(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (gtr *gormTokenRepository) ListAll(ctx context.Context) ([]model.Token, error) {
	var tokens []model.Token
	err := gtr.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (gtr *gormTokenRepository) GetByID(ctx context.Context, id uint) (*model.Token, error) {
	var token model.Token
	err := gtr.db.WithContext(ctx).First(&token, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (gtr *gormTokenRepository) ListWithAddress(ctx context.Context) ([]model.Token, error) {
	var tokens []model.Token
	err := gtr.db.WithContext(ctx).
		Where("address IS NOT NULL AND address <> ''").
		Order("id").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (gtr *gormTokenRepository) UpdateMarketCaps(ctx context.Context, id uint, current, highest float64) error {
	return gtr.db.WithContext(ctx).Model(&model.Token{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_market_cap": current,
			"highest_market_cap": highest,
			"updated_at":         time.Now(),
		}).Error
}
