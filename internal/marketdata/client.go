package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"whaletracker/internal/client/polymarket/clob"
	polymarketdata "whaletracker/internal/client/polymarket/data"
	polymarketgamma "whaletracker/internal/client/polymarket/gamma"
)

// Client is the Provider backed by the Gamma, CLOB and data APIs. When Tape
// holds fills for a market they are preferred over the data API.
type Client struct {
	Gamma      *polymarketgamma.Client
	Clob       *clob.Client
	Data       *polymarketdata.Client
	Tape       *TradeTape
	Logger     *zap.Logger
	TradeLimit int
}

func (c *Client) ActiveMarkets(ctx context.Context, limit int, minVolume float64) ([]Market, error) {
	if c == nil || c.Gamma == nil {
		return nil, fmt.Errorf("gamma client not configured")
	}
	items, err := c.Gamma.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list active markets: %w", err)
	}
	out := make([]Market, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		if float64(item.Volume) < minVolume {
			continue
		}
		out = append(out, toMarket(item))
	}
	return out, nil
}

func toMarket(item polymarketgamma.Market) Market {
	m := Market{
		ID:          item.ID,
		ConditionID: item.ConditionID,
		Question:    item.Question,
		Category:    item.Category,
		Slug:        item.Slug,
		Volume:      float64(item.Volume),
		Liquidity:   float64(item.Liquidity),
		YesPrice:    0.5,
	}
	if len(item.ClobTokenIDs) > 0 {
		m.YesTokenID = item.ClobTokenIDs[0]
	}
	if len(item.ClobTokenIDs) > 1 {
		m.NoTokenID = item.ClobTokenIDs[1]
	}
	if len(item.OutcomePrices) > 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(item.OutcomePrices[0]), 64); err == nil {
			m.YesPrice = v
		}
	}
	return m
}

// Observe reads both order books. A failed YES book fails the observation; a
// failed NO book only leaves the NO prices empty.
func (c *Client) Observe(ctx context.Context, market Market) (*Observation, error) {
	if c == nil || c.Clob == nil {
		return nil, fmt.Errorf("clob client not configured")
	}
	if market.YesTokenID == "" {
		return nil, fmt.Errorf("market %s has no clob token", market.ID)
	}
	yes, err := c.Clob.GetBook(ctx, market.YesTokenID)
	if err != nil {
		return nil, fmt.Errorf("yes book: %w", err)
	}
	obs := &Observation{
		YesBid:          bestPrice(yes.BestBid()),
		YesAsk:          bestPrice(yes.BestAsk()),
		BuyOrdersCount:  len(yes.Bids),
		SellOrdersCount: len(yes.Asks),
		TotalBuyVolume:  yes.BidSize().InexactFloat64(),
		TotalSellVolume: yes.AskSize().InexactFloat64(),
	}
	if market.NoTokenID == "" {
		return obs, nil
	}
	no, err := c.Clob.GetBook(ctx, market.NoTokenID)
	if err != nil {
		c.logger().Warn("no book fetch failed", zap.String("market_id", market.ID), zap.Error(err))
		return obs, nil
	}
	obs.NoBid = bestPrice(no.BestBid())
	obs.NoAsk = bestPrice(no.BestAsk())
	return obs, nil
}

func (c *Client) RecentTrades(ctx context.Context, market Market, since time.Time) ([]Trade, error) {
	if c == nil {
		return nil, nil
	}
	if c.Tape != nil {
		if trades := c.Tape.Trades(market.YesTokenID, market.NoTokenID, since); len(trades) > 0 {
			return trades, nil
		}
	}
	if c.Data == nil || market.ConditionID == "" {
		return nil, nil
	}
	items, err := c.Data.ListTrades(ctx, market.ConditionID, c.TradeLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	out := make([]Trade, 0, len(items))
	for _, item := range items {
		ts := item.Time()
		if ts.Before(since) {
			continue
		}
		out = append(out, Trade{
			Side:      yesSide(item.Side, item.Asset == market.NoTokenID && market.NoTokenID != ""),
			Size:      item.Size,
			Price:     item.Price,
			Timestamp: ts,
		})
	}
	return out, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// yesSide maps a raw side on either outcome token to YES terms. Unknown
// sides map to "".
func yesSide(side string, noToken bool) string {
	raw := strings.ToUpper(strings.TrimSpace(side))
	var buy bool
	switch {
	case strings.Contains(raw, SideBuy):
		buy = true
	case strings.Contains(raw, SideSell):
		buy = false
	default:
		return ""
	}
	if noToken {
		buy = !buy
	}
	if buy {
		return SideBuy
	}
	return SideSell
}

func bestPrice(v decimal.Decimal, ok bool) *float64 {
	if !ok {
		return nil
	}
	f := v.InexactFloat64()
	return &f
}
