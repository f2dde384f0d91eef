package clob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"whaletracker/internal/client/httpx"
)

const DefaultHost = "https://clob.polymarket.com"

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
	return &Client{
		host:      strings.TrimRight(host, "/"),
		transport: transport,
	}
}

func (c *Client) GetBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	body, err := c.transport.Get(ctx, c.host, "/book", query)
	if err != nil {
		return nil, err
	}
	return parseOrderBook(body)
}
