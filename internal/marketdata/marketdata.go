// Package marketdata turns the venue's REST and stream feeds into the market
// list, per-market observations and recent fills the poller consumes.
package marketdata

import (
	"context"
	"time"
)

type Market struct {
	ID          string
	ConditionID string
	Question    string
	Category    string
	Slug        string
	YesTokenID  string
	NoTokenID   string
	Volume      float64
	Liquidity   float64
	// YesPrice is outcomePrices[0], 0.5 when the venue omits it.
	YesPrice float64
}

// Observation is the order-book part of a snapshot. Nil prices mean the side
// was empty or could not be fetched.
type Observation struct {
	YesBid          *float64
	YesAsk          *float64
	NoBid           *float64
	NoAsk           *float64
	BuyOrdersCount  int
	SellOrdersCount int
	TotalBuyVolume  float64
	TotalSellVolume float64
}

// Trade is a fill expressed in YES terms: buying NO counts as a SELL.
type Trade struct {
	Side      string
	Size      float64
	Price     float64
	Timestamp time.Time
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

func (t Trade) Notional() float64 {
	return t.Size * t.Price
}

type Provider interface {
	ActiveMarkets(ctx context.Context, limit int, minVolume float64) ([]Market, error)
	Observe(ctx context.Context, market Market) (*Observation, error)
	RecentTrades(ctx context.Context, market Market, since time.Time) ([]Trade, error)
}
