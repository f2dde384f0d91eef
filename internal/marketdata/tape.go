package marketdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"whaletracker/internal/client/polymarket/clob"
	"whaletracker/internal/repository"
)

// TradeTape keeps recent stream fills per token in memory.
type TradeTape struct {
	Retention time.Duration
	Now       func() time.Time

	mu      sync.RWMutex
	byAsset map[string][]clob.LastTrade
}

func NewTradeTape(retention time.Duration) *TradeTape {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &TradeTape{Retention: retention, byAsset: map[string][]clob.LastTrade{}}
}

func (t *TradeTape) Record(trade clob.LastTrade) {
	if t == nil || trade.AssetID == "" {
		return
	}
	cutoff := t.now().Add(-t.Retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byAsset == nil {
		t.byAsset = map[string][]clob.LastTrade{}
	}
	items := append(t.byAsset[trade.AssetID], trade)
	keep := items[:0]
	for _, item := range items {
		if !item.Timestamp.Before(cutoff) {
			keep = append(keep, item)
		}
	}
	t.byAsset[trade.AssetID] = keep
}

// Trades returns fills on either token at or after since, in YES terms.
func (t *TradeTape) Trades(yesTokenID, noTokenID string, since time.Time) []Trade {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Trade
	collect := func(assetID string, noToken bool) {
		if assetID == "" {
			return
		}
		for _, item := range t.byAsset[assetID] {
			if item.Timestamp.Before(since) {
				continue
			}
			out = append(out, Trade{
				Side:      yesSide(item.Side, noToken),
				Size:      item.Size.InexactFloat64(),
				Price:     item.Price.InexactFloat64(),
				Timestamp: item.Timestamp,
			})
		}
	}
	collect(yesTokenID, false)
	collect(noTokenID, true)
	return out
}

// Run feeds the tape from stream until ctx ends.
func (t *TradeTape) Run(ctx context.Context, stream *clob.TradeStream) error {
	return stream.Run(ctx, t.Record)
}

func (t *TradeTape) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now().UTC()
}

// StreamAssetIDs subscribes the stream to the tokens of tracked markets.
func StreamAssetIDs(repo repository.SnapshotRepository, maxMarkets int, logger *zap.Logger) clob.AssetIDProvider {
	if maxMarkets <= 0 {
		maxMarkets = 100
	}
	return func(ctx context.Context) ([]string, error) {
		markets, err := repo.ListMarkets(ctx, repository.ListMarketsParams{Limit: maxMarkets, OrderBy: "updated_at"})
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(markets)*2)
		for _, m := range markets {
			if m.YesTokenID != "" {
				out = append(out, m.YesTokenID)
			}
			if m.NoTokenID != "" {
				out = append(out, m.NoTokenID)
			}
		}
		if logger != nil {
			logger.Debug("stream asset ids refreshed", zap.Int("count", len(out)))
		}
		return out, nil
	}
}
