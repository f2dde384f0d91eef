package clob

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal accepts both quoted and bare JSON numbers.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			d.Decimal = decimal.Zero
			return nil
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

type Order struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var arr []Decimal
	if err := json.Unmarshal(b, &arr); err == nil && len(arr) >= 2 {
		o.Price = arr[0].Decimal
		o.Size = arr[1].Decimal
		return nil
	}
	var obj struct {
		Price Decimal `json:"price"`
		Size  Decimal `json:"size"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("invalid order: %s", string(b))
	}
	o.Price = obj.Price.Decimal
	o.Size = obj.Size.Decimal
	return nil
}

type OrderBook struct {
	Market  string  `json:"market"`
	AssetID string  `json:"asset_id"`
	Bids    []Order `json:"bids"`
	Asks    []Order `json:"asks"`
}

// BestBid is the highest bid price. The venue does not guarantee level order.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if b == nil || len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	best := b.Bids[0].Price
	for _, o := range b.Bids[1:] {
		if o.Price.GreaterThan(best) {
			best = o.Price
		}
	}
	return best, true
}

// BestAsk is the lowest ask price.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if b == nil || len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	best := b.Asks[0].Price
	for _, o := range b.Asks[1:] {
		if o.Price.LessThan(best) {
			best = o.Price
		}
	}
	return best, true
}

func (b *OrderBook) BidSize() decimal.Decimal {
	return sumSize(b.bids())
}

func (b *OrderBook) AskSize() decimal.Decimal {
	return sumSize(b.asks())
}

func (b *OrderBook) bids() []Order {
	if b == nil {
		return nil
	}
	return b.Bids
}

func (b *OrderBook) asks() []Order {
	if b == nil {
		return nil
	}
	return b.Asks
}

func sumSize(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Size)
	}
	return total
}

func parseOrderBook(body []byte) (*OrderBook, error) {
	var book OrderBook
	if err := json.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("decode book: %w", err)
	}
	return &book, nil
}
