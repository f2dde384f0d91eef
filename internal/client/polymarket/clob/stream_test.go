package clob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestParseLastTrades_SingleAndBatch(t *testing.T) {
	single := []byte(`{"event_type":"last_trade_price","asset_id":"111","market":"0xabc","side":"buy","price":"0.55","size":"2000","timestamp":"1700000000000"}`)
	trades := ParseLastTrades(single)
	if len(trades) != 1 {
		t.Fatalf("len=%d want=1", len(trades))
	}
	tr := trades[0]
	if tr.Side != "BUY" || tr.AssetID != "111" {
		t.Fatalf("trade=%+v", tr)
	}
	if !tr.Timestamp.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Fatalf("timestamp=%v", tr.Timestamp)
	}

	batch := []byte(`[
		{"event_type":"book","asset_id":"111","bids":[],"asks":[]},
		{"event_type":"last_trade_price","asset_id":"222","side":"SELL","price":0.3,"size":10,"timestamp":"1700000000000"}
	]`)
	trades = ParseLastTrades(batch)
	if len(trades) != 1 || trades[0].AssetID != "222" || trades[0].Side != "SELL" {
		t.Fatalf("trades=%+v want one SELL on 222", trades)
	}
}

func TestParseLastTrades_IgnoresNoise(t *testing.T) {
	for _, raw := range []string{"", "PONG", `{"event_type":"price_change"}`, `{"event_type":"last_trade_price"}`} {
		if got := ParseLastTrades([]byte(raw)); len(got) != 0 {
			t.Fatalf("raw=%q trades=%v want none", raw, got)
		}
	}
}

func TestIsPing(t *testing.T) {
	if !isPing([]byte("PING")) || !isPing([]byte(`{"type":"ping"}`)) {
		t.Fatalf("ping payloads not detected")
	}
	if isPing([]byte(`{"event_type":"book"}`)) {
		t.Fatalf("book payload detected as ping")
	}
}

func TestDiffSets(t *testing.T) {
	added, removed := diffSets(setFromSlice([]string{"a", "b"}), setFromSlice([]string{"b", "c", " "}))
	if len(added) != 1 || added[0] != "c" {
		t.Fatalf("added=%v want=[c]", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("removed=%v want=[a]", removed)
	}
}

func TestSession_EndsWhenHeartbeatFails(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		// Never read, so pings go unanswered.
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	stream := NewTradeStream(TradeStreamOptions{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		AssetIDProvider:   func(context.Context) ([]string, error) { return []string{"111"}, nil },
		HeartbeatInterval: 20 * time.Millisecond,
		PingTimeout:       50 * time.Millisecond,
		RefreshInterval:   time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		connected, err := stream.session(ctx, nil)
		if !connected {
			t.Errorf("connected=false want=true")
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("err=nil want session failure")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("session still blocked after heartbeat failure")
	}
}
