package model

import "time"

// Token is a tracked token row. Link is the business key: re-ingesting the
// same link updates the existing row instead of creating a duplicate.
type Token struct {
	ID                uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"column:name;not null" json:"name"`
	Link              string    `gorm:"column:link;uniqueIndex;not null" json:"link"`
	Address           *string   `gorm:"column:address" json:"address"`
	CapturedMarketCap float64   `gorm:"column:captured_market_cap;not null" json:"captured_market_cap"`
	CurrentMarketCap  *float64  `gorm:"column:current_market_cap" json:"current_market_cap"`
	HighestMarketCap  float64   `gorm:"column:highest_market_cap;not null" json:"highest_market_cap"`
	CapturedTimestamp int64     `gorm:"column:captured_timestamp;not null" json:"captured_timestamp"`
	Liquidity         *string   `gorm:"column:liquidity" json:"liquidity"`
	Narrative         *string   `gorm:"column:narrative" json:"narrative"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Token) TableName() string {
	return "tokens"
}

// TokenView is the client-facing projection of a Token. PercentChange is
// derived at read time and never stored.
type TokenView struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	Link              string    `json:"link"`
	Address           *string   `json:"address"`
	CapturedMcap      float64   `json:"capturedMcap"`
	CurrentMcap       *float64  `json:"currentMcap"`
	HighestMcap       float64   `json:"highestMcap"`
	PercentChange     float64   `json:"percentChange"`
	CapturedTimestamp int64     `json:"capturedTimestamp"`
	Liquidity         *string   `json:"liquidity"`
	Narrative         *string   `json:"narrative"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
