package notification

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
)

// Trade update events
const (
	EventEntry      = "entry"
	EventStopLoss   = "stop_loss"
	EventTakeProfit = "take_profit"
)

var printer = message.NewPrinter(language.English)

func directionEmoji(d market.Direction) string {
	if d == market.Bullish {
		return "🟢"
	}
	return "🔴"
}

func side(d market.Direction) string {
	if d == market.Bullish {
		return "LONG"
	}
	return "SHORT"
}

// FormatSignalAlert renders a signal as Telegram HTML
func FormatSignalAlert(sig *signals.Signal, now time.Time) string {
	emoji := directionEmoji(sig.Direction)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>NEW SIGNAL</b> %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", sig.Symbol)
	fmt.Fprintf(&b, "<b>Direction:</b> %s\n", side(sig.Direction))
	fmt.Fprintf(&b, "<b>Timeframe:</b> %s\n\n", sig.Timeframe)
	fmt.Fprintf(&b, "<b>Zone:</b> %.2f\n", sig.ZonePrice)
	fmt.Fprintf(&b, "<b>Trigger:</b> %s\n\n", sig.TriggerType)
	fmt.Fprintf(&b, "📍 <b>Entry:</b> %.2f\n", sig.EntryPrice)
	fmt.Fprintf(&b, "🛑 <b>Stop Loss:</b> %.2f\n", sig.StopLoss)
	fmt.Fprintf(&b, "🎯 <b>Take Profit:</b> %.2f\n\n", sig.TakeProfit1)
	fmt.Fprintf(&b, "<b>R:R:</b> 1:%.1f\n", sig.RiskReward)
	fmt.Fprintf(&b, "<b>Convergence:</b> %.0f%% (%s)\n\n", sig.ConvergenceScore*100, sig.Grade)
	fmt.Fprintf(&b, "⏰ %s UTC", now.UTC().Format("2006-01-02 15:04"))
	return b.String()
}

// FormatTradeUpdate renders a trade event. Exit events without a PnL render nothing.
func FormatTradeUpdate(symbol string, dir market.Direction, event string, price, pnl float64) string {
	switch event {
	case EventEntry:
		emoji := "📈"
		if dir == market.Bearish {
			emoji = "📉"
		}
		return fmt.Sprintf("%s <b>TRADE OPENED</b>\n%s %s @ %.2f", emoji, symbol, side(dir), price)
	case EventStopLoss:
		if pnl == 0 {
			return ""
		}
		return fmt.Sprintf("🛑 <b>STOP LOSS HIT</b>\n%s closed @ %.2f\nPnL: %+.2f%%", symbol, price, pnl*100)
	case EventTakeProfit:
		if pnl == 0 {
			return ""
		}
		return fmt.Sprintf("✅ <b>TARGET REACHED</b>\n%s closed @ %.2f\nPnL: %+.2f%%", symbol, price, pnl*100)
	default:
		return fmt.Sprintf("📊 %s: %s @ %.2f", symbol, event, price)
	}
}

// FormatDailySummary renders the risk ledger statistics
func FormatDailySummary(stats risk.Stats, blockSize int, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>DAILY SUMMARY</b>\n\n")
	b.WriteString("<b>Capital</b>\n")
	b.WriteString(printer.Sprintf("Total: $%.2f\n", stats.Capital.Total))
	b.WriteString(printer.Sprintf("Operative: $%.2f\n\n", stats.Capital.Operative))
	b.WriteString("<b>Today's Stats</b>\n")
	fmt.Fprintf(&b, "Trades: %d\n", stats.TotalTrades)
	fmt.Fprintf(&b, "Win Rate: %.1f%%\n", stats.WinRate*100)
	fmt.Fprintf(&b, "Total PnL: %+.2f%%\n\n", stats.TotalPnLPercent*100)
	b.WriteString("<b>Current Block</b>\n")
	fmt.Fprintf(&b, "Block #%d\n", stats.CurrentBlock)
	fmt.Fprintf(&b, "Trades: %d/%d\n\n", stats.BlockTrades, blockSize)
	fmt.Fprintf(&b, "⏰ %s", now.UTC().Format("2006-01-02"))
	return b.String()
}

// FormatZoneAlert renders a zone-approaching warning
func FormatZoneAlert(symbol, zoneType string, price float64, bias market.Direction, tf market.Timeframe) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>ZONE APPROACHING</b>\n\n")
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", symbol)
	fmt.Fprintf(&b, "<b>Zone Type:</b> %s\n", zoneType)
	fmt.Fprintf(&b, "<b>Price:</b> %.2f\n", price)
	fmt.Fprintf(&b, "<b>Bias:</b> %s %s\n", directionEmoji(bias), bias)
	fmt.Fprintf(&b, "<b>Timeframe:</b> %s\n\n", tf)
	b.WriteString("Watch for trigger confirmation!")
	return b.String()
}

// FormatSignalConsole renders a signal for terminal output
func FormatSignalConsole(sig *signals.Signal) string {
	rule := strings.Repeat("=", 40)
	lines := []string{
		rule,
		fmt.Sprintf("%s SIGNAL", sig.Direction),
		rule,
		fmt.Sprintf("Symbol:     %s", sig.Symbol),
		fmt.Sprintf("Timeframe:  %s", sig.Timeframe),
		fmt.Sprintf("Trigger:    %s", sig.TriggerType),
		strings.Repeat("-", 40),
		fmt.Sprintf("Entry:      %.4f", sig.EntryPrice),
		fmt.Sprintf("Stop Loss:  %.4f", sig.StopLoss),
		fmt.Sprintf("Take Profit:%.4f", sig.TakeProfit1),
		fmt.Sprintf("R:R:        1:%.1f", sig.RiskReward),
		rule,
	}
	return strings.Join(lines, "\n")
}
