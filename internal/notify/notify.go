// Package notify delivers whale alerts and performance digests to Telegram
// and generic webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"whaletracker/internal/models"
	"whaletracker/internal/papertrade"
)

// Alert describes a newly active high-confidence recommendation.
type Alert struct {
	RecommendationID uint64              `json:"recommendation_id"`
	MarketID         string              `json:"market_id"`
	Question         string              `json:"question"`
	Slug             string              `json:"slug,omitempty"`
	Direction        models.Direction    `json:"direction"`
	WhaleScore       int                 `json:"whale_score"`
	Confidence       models.Confidence   `json:"confidence"`
	Signals          []models.SignalKind `json:"signals"`
	Price            float64             `json:"price"`
	// PaperTradeID is set when a simulated position was opened for the alert.
	PaperTradeID *uint64 `json:"paper_trade_id,omitempty"`
}

type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
	SendDigest(ctx context.Context, stats papertrade.Stats) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) SendAlert(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendDigest(ctx context.Context, stats papertrade.Stats) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendDigest(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) SendAlert(context.Context, Alert) error             { return nil }
func (Nop) SendDigest(context.Context, papertrade.Stats) error { return nil }

// FormatAlert renders alert as Telegram HTML.
func FormatAlert(alert Alert) string {
	question := alert.Question
	if question == "" {
		question = "Unknown Market"
	}
	if r := []rune(question); len(r) > 100 {
		question = string(r[:100])
	}
	var b strings.Builder
	b.WriteString("<b>WHALE ALERT</b>\n\n")
	fmt.Fprintf(&b, "<b>Market:</b> %s\n\n", html.EscapeString(question))
	fmt.Fprintf(&b, "<b>Recommendation:</b> <b>%s</b>\n", alert.Direction)
	fmt.Fprintf(&b, "<b>Whale Score:</b> %d/100\n", alert.WhaleScore)
	fmt.Fprintf(&b, "<b>Confidence:</b> %s\n\n", alert.Confidence)
	b.WriteString("<b>Signals Detected:</b>\n")
	for _, kind := range alert.Signals {
		fmt.Fprintf(&b, "  • %s\n", kind.Label())
	}
	if alert.PaperTradeID != nil {
		b.WriteString("\n<i>Paper trade auto-entered.</i>")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDigest renders the paper trading summary as Telegram HTML.
func FormatDigest(stats papertrade.Stats) string {
	days := stats.Days
	if days <= 0 {
		days = 7
	}
	var b strings.Builder
	b.WriteString("<b>Paper Trading Performance Update</b>\n\n")
	fmt.Fprintf(&b, "<b>Last %d Days:</b>\n", days)
	fmt.Fprintf(&b, "  • Total Trades: %d\n", stats.TotalTrades)
	fmt.Fprintf(&b, "  • Win Rate: %.1f%%\n", stats.WinRate)
	fmt.Fprintf(&b, "  • Total P&amp;L: %s\n", signedUSD(stats.TotalPnL.InexactFloat64()))
	fmt.Fprintf(&b, "  • Avg P&amp;L: %s\n\n", signedUSD(stats.AvgPnL.InexactFloat64()))
	b.WriteString("<b>High-Confidence Trades:</b>\n")
	fmt.Fprintf(&b, "  • Count: %d\n", stats.HighScoreTrades)
	fmt.Fprintf(&b, "  • Win Rate: %.1f%%\n\n", stats.HighScoreWinRate)
	var best, worst float64
	if stats.BestTrade != nil {
		best = stats.BestTrade.PnL.InexactFloat64()
	}
	if stats.WorstTrade != nil {
		worst = stats.WorstTrade.PnL.InexactFloat64()
	}
	fmt.Fprintf(&b, "<b>Best Trade:</b> %s\n", signedUSD(best))
	fmt.Fprintf(&b, "<b>Worst Trade:</b> %s", signedUSD(worst))
	return b.String()
}

func signedUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}
