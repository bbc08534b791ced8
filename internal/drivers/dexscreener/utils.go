package dexscreener

type TokenResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

type Pair struct {
	ChainID     string    `json:"chainId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   BaseToken `json:"baseToken"`
	PriceUSD    string    `json:"priceUsd"`
	FDV         float64   `json:"fdv"`
	MarketCap   float64   `json:"marketCap"`
	Liquidity   Liquidity `json:"liquidity"`
}

type BaseToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	USD float64 `json:"usd"`
}
