package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeBalance is the EUR-denominated account summary returned by Kraken's
// TradeBalance endpoint.
type TradeBalance struct {
	Equity     decimal.Decimal `json:"eb"` // combined value of all balances
	TradeValue decimal.Decimal `json:"tb"` // balance available for trading
	FreeMargin decimal.Decimal `json:"mf"` // usable margin
}

// OpenOrder is one entry of the OpenOrders response, reduced to the fields
// the analysis cares about.
type OpenOrder struct {
	Pair      string          `json:"pair"`
	Type      string          `json:"type"` // buy / sell
	OrderType string          `json:"ordertype"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"vol"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// Trade is one entry of the TradesHistory response.
type Trade struct {
	Pair   string          `json:"pair"`
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"vol"`
	Cost   decimal.Decimal `json:"cost"`
	Fee    decimal.Decimal `json:"fee"`
	Time   time.Time       `json:"time"`
}

// Ticker holds the last price and 24h statistics for one pair.
type Ticker struct {
	Last      decimal.Decimal `json:"last"`
	Open24h   decimal.Decimal `json:"open_24h"`
	High24h   decimal.Decimal `json:"high_24h"`
	Low24h    decimal.Decimal `json:"low_24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
}

// Change24h returns the percentage change of the last price against the 24h
// open, or zero when the open is unknown.
func (t Ticker) Change24h() decimal.Decimal {
	if t.Open24h.IsZero() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return t.Last.Sub(t.Open24h).Div(t.Open24h).Mul(hundred)
}

// Portfolio is one snapshot of the account, as persisted to
// data/portfolio/<exchange>/portfolio_<ts>.json.
type Portfolio struct {
	Timestamp    time.Time                  `json:"timestamp"`
	Exchange     string                     `json:"exchange"`
	Balances     map[string]decimal.Decimal `json:"balance"`
	TradeBalance TradeBalance               `json:"trade_balance_eur"`
	OpenOrders   map[string]OpenOrder       `json:"open_orders"`
	Trades       map[string]Trade           `json:"trades_history"`
	Ticker       map[string]Ticker          `json:"ticker_data"`
}

// Fiat currencies are never converted into EUR candle pairs.
var fiatAssets = map[string]bool{"ZEUR": true, "ZUSD": true, "ZGBP": true, "EUR": true, "USD": true}

// IsFiat reports whether an asset code is a fiat currency.
func IsFiat(asset string) bool {
	return fiatAssets[asset]
}

// HeldAssets returns the non-fiat assets whose balance is at least min.
// Order is unspecified.
func (p *Portfolio) HeldAssets(min decimal.Decimal) []string {
	var assets []string
	for asset, amount := range p.Balances {
		if IsFiat(asset) {
			continue
		}
		if amount.Cmp(min) < 0 {
			continue
		}
		assets = append(assets, asset)
	}
	return assets
}
