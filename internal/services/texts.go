package services

import (
	"fmt"
	"strconv"
)

func startedText(intervalMinutes int, targetWin, stopLoss int64) string {
	return fmt.Sprintf("🚀 *TRACKING STARTED*\nReminders every %d minutes.\nTarget win: %s\nStop loss: %s",
		intervalMinutes, formatAmount(targetWin), formatAmount(stopLoss))
}

func activatedText() string {
	return "✅ *BOT ACTIVE*\nConfigure your session parameters on the dashboard."
}

func stoppedText() string {
	return "🛑 *SESSION STOPPED*"
}

func summaryText(startBalance, net, currentBalance int64, active bool) string {
	status := "⚪ Session stopped"
	if active {
		status = "🟢 Monitoring active"
	}
	return fmt.Sprintf("📈 *ACCOUNT SUMMARY*\n\n💰 Start balance: %s\n📊 Net profit: *%s*\n🏦 Current balance: *%s*\n\nStatus: %s",
		formatAmount(startBalance), formatAmount(net), formatAmount(currentBalance), status)
}

func entryLoggedText(amount, net int64) string {
	return fmt.Sprintf("📊 *ENTRY RECORDED*\nAmount: %s\nSession net: *%s*\n\n",
		formatAmount(amount), formatAmount(net))
}

func targetWinText() string {
	return "🏆 *TARGET WIN REACHED!*\nTracking stopped automatically. Lock in your profit!"
}

func stopLossText() string {
	return "🛑 *STOP LOSS REACHED!*\nTracking stopped automatically. Do not force more trades!"
}

func reminderContinuesText(intervalMinutes int) string {
	return fmt.Sprintf("🔔 Reminders continue every %d minutes.", intervalMinutes)
}

// formatAmount renders a minor-unit amount with thousands separators,
// e.g. -1234567 -> "-1,234,567".
func formatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	n := len(s)
	if n > 3 {
		grouped := make([]byte, 0, n+(n-1)/3)
		lead := n % 3
		if lead > 0 {
			grouped = append(grouped, s[:lead]...)
		}
		for i := lead; i < n; i += 3 {
			if len(grouped) > 0 {
				grouped = append(grouped, ',')
			}
			grouped = append(grouped, s[i:i+3]...)
		}
		s = string(grouped)
	}

	if neg {
		return "-" + s
	}
	return s
}
