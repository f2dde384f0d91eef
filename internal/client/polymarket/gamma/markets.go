package polymarketgamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"whaletracker/internal/client/httpx"
)

const DefaultHost = "https://gamma-api.polymarket.com"

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

// Market is the subset of the Gamma market object the tracker reads.
type Market struct {
	ID            string     `json:"id"`
	ConditionID   string     `json:"conditionId"`
	Question      string     `json:"question"`
	Category      string     `json:"category"`
	Slug          string     `json:"slug"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	Volume        FlexFloat  `json:"volume"`
	Liquidity     FlexFloat  `json:"liquidity"`
	OutcomePrices StringList `json:"outcomePrices"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
}

// ListActiveMarkets returns open markets, at most limit of them.
func (c *Client) ListActiveMarkets(ctx context.Context, limit int) ([]Market, error) {
	query := url.Values{}
	query.Set("active", "true")
	query.Set("closed", "false")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.transport.Get(ctx, c.host, "/markets", query)
	if err != nil {
		return nil, err
	}
	var items []Market
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return items, nil
}

// FlexFloat decodes numbers that Gamma sends either bare or quoted.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", string(b))
	}
	*f = FlexFloat(v)
	return nil
}

// StringList decodes a JSON array of strings, or a string holding one.
// Gamma stringifies outcomePrices and clobTokenIds.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*l = nil
		return nil
	}
	var direct []string
	if err := json.Unmarshal(b, &direct); err == nil {
		*l = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(b, &encoded); err != nil {
		return fmt.Errorf("invalid string list: %s", raw)
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &direct); err != nil {
		return fmt.Errorf("invalid string list: %s", raw)
	}
	*l = direct
	return nil
}
