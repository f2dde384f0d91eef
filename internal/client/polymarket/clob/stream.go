package clob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultMarketWSSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

const eventLastTradePrice = "last_trade_price"

// LastTrade is a single fill reported on the market channel.
type LastTrade struct {
	AssetID   string
	Market    string
	Side      string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

type subscribeRequest struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids,omitempty"`
}

type subscriptionUpdate struct {
	AssetsIDs []string `json:"assets_ids"`
	Operation string   `json:"operation"`
}

type marketEvent struct {
	EventType string  `json:"event_type"`
	AssetID   string  `json:"asset_id"`
	Market    string  `json:"market"`
	Side      string  `json:"side"`
	Price     Decimal `json:"price"`
	Size      Decimal `json:"size"`
	Timestamp string  `json:"timestamp"`
}

// AssetIDProvider returns the token IDs the stream should follow.
type AssetIDProvider func(context.Context) ([]string, error)

type TradeStreamOptions struct {
	URL               string
	AssetIDProvider   AssetIDProvider
	RefreshInterval   time.Duration
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// TradeStream keeps a market-channel subscription open and forwards every
// last_trade_price event. Reconnects run forever with exponential backoff
// until the context ends.
type TradeStream struct {
	opts TradeStreamOptions
}

func NewTradeStream(opts TradeStreamOptions) *TradeStream {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultMarketWSSURL
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &TradeStream{opts: opts}
}

func (s *TradeStream) Run(ctx context.Context, onTrade func(LastTrade)) error {
	if s == nil {
		return fmt.Errorf("stream is nil")
	}
	if s.opts.AssetIDProvider == nil {
		return fmt.Errorf("asset id provider is required")
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.BackoffMin
	policy.MaxInterval = s.opts.BackoffMax
	policy.MaxElapsedTime = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		connected, err := s.session(ctx, onTrade)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			policy.Reset()
		}
		wait := policy.NextBackOff()
		s.opts.Logger.Warn("trade stream disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection. connected reports whether the subscription
// went through, which resets the backoff.
func (s *TradeStream) session(ctx context.Context, onTrade func(LastTrade)) (connected bool, err error) {
	ids, err := s.opts.AssetIDProvider(ctx)
	if err != nil {
		return false, fmt.Errorf("load asset ids: %w", err)
	}
	current := setFromSlice(ids)
	if len(current) == 0 {
		return false, errors.New("no assets to subscribe")
	}

	conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(2 << 20)
	defer conn.Close(websocket.StatusNormalClosure, "reconnect")

	if err := writeJSON(ctx, conn, subscribeRequest{Type: "market", AssetsIDs: keys(current)}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	s.opts.Logger.Info("trade stream subscribed", zap.Int("assets", len(current)))

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	failed := make(chan error, 2)
	fail := func(err error) {
		failed <- err
		cancel()
	}
	go s.heartbeat(sessionCtx, conn, fail)
	go s.refresh(sessionCtx, conn, current, fail)

	for {
		select {
		case err := <-failed:
			return true, err
		default:
		}
		_, data, err := conn.Read(sessionCtx)
		if err != nil {
			select {
			case ferr := <-failed:
				return true, ferr
			default:
			}
			return true, fmt.Errorf("read: %w", err)
		}
		if isPing(data) {
			_ = conn.Write(sessionCtx, websocket.MessageText, []byte(`{"event_type":"pong"}`))
			continue
		}
		for _, trade := range ParseLastTrades(data) {
			if onTrade != nil {
				onTrade(trade)
			}
		}
	}
}

func (s *TradeStream) heartbeat(ctx context.Context, conn *websocket.Conn, fail func(error)) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (s *TradeStream) refresh(ctx context.Context, conn *websocket.Conn, current map[string]struct{}, fail func(error)) {
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.opts.AssetIDProvider(ctx)
			if err != nil {
				s.opts.Logger.Debug("trade stream refresh failed", zap.Error(err))
				continue
			}
			next := setFromSlice(ids)
			added, removed := diffSets(current, next)
			if len(added) > 0 {
				if err := writeJSON(ctx, conn, subscriptionUpdate{AssetsIDs: added, Operation: "subscribe"}); err != nil {
					fail(err)
					return
				}
			}
			if len(removed) > 0 {
				if err := writeJSON(ctx, conn, subscriptionUpdate{AssetsIDs: removed, Operation: "unsubscribe"}); err != nil {
					fail(err)
					return
				}
			}
			current = next
		}
	}
}

// ParseLastTrades extracts last_trade_price events from a frame. Frames may
// carry a single event object or an array of events.
func ParseLastTrades(data []byte) []LastTrade {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	var events []marketEvent
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil
		}
	} else {
		var ev marketEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil
		}
		events = []marketEvent{ev}
	}
	out := make([]LastTrade, 0, len(events))
	for _, ev := range events {
		if ev.EventType != eventLastTradePrice || ev.AssetID == "" {
			continue
		}
		out = append(out, LastTrade{
			AssetID:   ev.AssetID,
			Market:    ev.Market,
			Side:      strings.ToUpper(ev.Side),
			Price:     ev.Price.Decimal,
			Size:      ev.Size.Decimal,
			Timestamp: parseMillis(ev.Timestamp),
		})
	}
	return out
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func isPing(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	if strings.EqualFold(trimmed, "ping") {
		return true
	}
	var probe struct {
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return strings.EqualFold(probe.Type, "ping") || strings.EqualFold(probe.EventType, "ping")
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func setFromSlice(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = struct{}{}
	}
	return out
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func diffSets(current, next map[string]struct{}) (added, removed []string) {
	for key := range next {
		if _, ok := current[key]; !ok {
			added = append(added, key)
		}
	}
	for key := range current {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	return added, removed
}
