// Package polymarketdata reads public fills from the Polymarket data API.
package polymarketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"whaletracker/internal/client/httpx"
)

const DefaultHost = "https://data-api.polymarket.com"

type Client struct {
	host      string
	transport *httpx.Client
}

func NewClient(transport *httpx.Client, host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	if transport == nil {
		transport = httpx.New(httpx.Options{})
	}
	return &Client{host: strings.TrimRight(host, "/"), transport: transport}
}

type Trade struct {
	ConditionID string  `json:"conditionId"`
	Asset       string  `json:"asset"`
	Side        string  `json:"side"`
	Size        float64 `json:"size"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
}

func (t Trade) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// ListTrades returns the most recent fills for a market condition.
func (c *Client) ListTrades(ctx context.Context, conditionID string, limit int) ([]Trade, error) {
	if strings.TrimSpace(conditionID) == "" {
		return nil, fmt.Errorf("condition id is required")
	}
	query := url.Values{}
	query.Set("market", conditionID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Get(ctx, c.host, "/trades", query)
	if err != nil {
		return nil, err
	}
	var items []Trade
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return items, nil
}
