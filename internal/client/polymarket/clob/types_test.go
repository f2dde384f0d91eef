package clob

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderBook_BestLevelsIgnoreOrder(t *testing.T) {
	body := []byte(`{
		"market": "0xabc",
		"asset_id": "111",
		"bids": [{"price": "0.40", "size": "100"}, {"price": "0.48", "size": "50"}],
		"asks": [{"price": "0.60", "size": "10"}, ["0.52", "30"]]
	}`)
	book, err := parseOrderBook(body)
	if err != nil {
		t.Fatalf("parseOrderBook err=%v", err)
	}
	bid, ok := book.BestBid()
	if !ok || !bid.Equal(decimal.RequireFromString("0.48")) {
		t.Fatalf("best bid=%s ok=%v want=0.48", bid, ok)
	}
	ask, ok := book.BestAsk()
	if !ok || !ask.Equal(decimal.RequireFromString("0.52")) {
		t.Fatalf("best ask=%s ok=%v want=0.52", ask, ok)
	}
	if got := book.BidSize(); !got.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("bid size=%s want=150", got)
	}
	if got := book.AskSize(); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("ask size=%s want=40", got)
	}
}

func TestOrderBook_EmptySides(t *testing.T) {
	var book *OrderBook
	if _, ok := book.BestBid(); ok {
		t.Fatalf("nil book reported a bid")
	}
	book = &OrderBook{}
	if _, ok := book.BestAsk(); ok {
		t.Fatalf("empty book reported an ask")
	}
	if !book.BidSize().IsZero() {
		t.Fatalf("empty bid size=%s want=0", book.BidSize())
	}
}
