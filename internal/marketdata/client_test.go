package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"whaletracker/internal/client/httpx"
	"whaletracker/internal/client/polymarket/clob"
	polymarketdata "whaletracker/internal/client/polymarket/data"
	polymarketgamma "whaletracker/internal/client/polymarket/gamma"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport := httpx.New(httpx.Options{RequestsPerSec: 100, MaxRetryElapsed: time.Second})
	return &Client{
		Gamma:      polymarketgamma.NewClient(transport, srv.URL),
		Clob:       clob.NewClient(transport, srv.URL),
		Data:       polymarketdata.NewClient(transport, srv.URL),
		TradeLimit: 50,
	}
}

func TestActiveMarkets_FiltersVolumeAndParsesPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"big","conditionId":"0x1","question":"Big?","volume":"900000","outcomePrices":"[\"0.7\",\"0.3\"]","clobTokenIds":"[\"y\",\"n\"]"},
			{"id":"small","volume":"1000"},
			{"id":"noprice","volume":600000}
		]`))
	})
	markets, err := c.ActiveMarkets(context.Background(), 100, 500000)
	if err != nil {
		t.Fatalf("ActiveMarkets err=%v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("len=%d want=2", len(markets))
	}
	if markets[0].YesPrice != 0.7 || markets[0].YesTokenID != "y" || markets[0].NoTokenID != "n" {
		t.Fatalf("market=%+v", markets[0])
	}
	if markets[1].YesPrice != 0.5 {
		t.Fatalf("default yes price=%v want=0.5", markets[1].YesPrice)
	}
}

func TestObserve_ToleratesMissingNoBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "n" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"bids":[{"price":"0.55","size":"700"},{"price":"0.50","size":"100"}],"asks":[{"price":"0.60","size":"200"}]}`))
	})
	obs, err := c.Observe(context.Background(), Market{ID: "m", YesTokenID: "y", NoTokenID: "n"})
	if err != nil {
		t.Fatalf("Observe err=%v", err)
	}
	if obs.YesBid == nil || *obs.YesBid != 0.55 {
		t.Fatalf("yes bid=%v want=0.55", obs.YesBid)
	}
	if obs.BuyOrdersCount != 2 || obs.SellOrdersCount != 1 {
		t.Fatalf("counts=%d/%d want=2/1", obs.BuyOrdersCount, obs.SellOrdersCount)
	}
	if obs.TotalBuyVolume != 800 || obs.TotalSellVolume != 200 {
		t.Fatalf("volumes=%v/%v want=800/200", obs.TotalBuyVolume, obs.TotalSellVolume)
	}
	if obs.NoBid != nil || obs.NoAsk != nil {
		t.Fatalf("no side should be empty: %v %v", obs.NoBid, obs.NoAsk)
	}
}

func TestObserve_FailsWithoutYesBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})
	if _, err := c.Observe(context.Background(), Market{ID: "m", YesTokenID: "y"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := c.Observe(context.Background(), Market{ID: "m"}); err == nil {
		t.Fatalf("expected error for market without tokens")
	}
}

func TestRecentTrades_DataAPIWindowAndSides(t *testing.T) {
	now := time.Now().UTC()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades" || r.URL.Query().Get("market") != "0xc" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		recent := now.Add(-time.Minute).Unix()
		old := now.Add(-time.Hour).Unix()
		_, _ = w.Write([]byte(`[
			{"asset":"y","side":"BUY","size":1000,"price":0.6,"timestamp":` + itoa(recent) + `},
			{"asset":"n","side":"BUY","size":500,"price":0.4,"timestamp":` + itoa(recent) + `},
			{"asset":"y","side":"SELL","size":9,"price":0.6,"timestamp":` + itoa(old) + `},
			{"asset":"y","side":"","size":90000,"price":0.6,"timestamp":` + itoa(recent) + `}
		]`))
	})
	trades, err := c.RecentTrades(context.Background(), Market{ID: "m", ConditionID: "0xc", YesTokenID: "y", NoTokenID: "n"}, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("RecentTrades err=%v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("len=%d want=3", len(trades))
	}
	if trades[0].Side != SideBuy || trades[1].Side != SideSell {
		t.Fatalf("sides=%s,%s want=BUY,SELL", trades[0].Side, trades[1].Side)
	}
	// NO-token fills keep their own price so notional stays in dollars paid.
	if trades[1].Price != 0.4 || trades[1].Notional() != 200 {
		t.Fatalf("no trade price=%v notional=%v want=0.4/200", trades[1].Price, trades[1].Notional())
	}
	if trades[2].Side != "" {
		t.Fatalf("unknown side=%q want empty", trades[2].Side)
	}
}

func TestYesSide(t *testing.T) {
	cases := []struct {
		side    string
		noToken bool
		want    string
	}{
		{"BUY", false, SideBuy},
		{"sell", false, SideSell},
		{"BUY", true, SideSell},
		{"SELL", true, SideBuy},
		{"", false, ""},
		{"", true, ""},
		{"unknown", true, ""},
	}
	for _, tc := range cases {
		if got := yesSide(tc.side, tc.noToken); got != tc.want {
			t.Fatalf("yesSide(%q,%v)=%q want=%q", tc.side, tc.noToken, got, tc.want)
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
