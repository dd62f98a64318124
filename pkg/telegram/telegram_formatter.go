package telegram

import (
	"fmt"
	"strings"
	"time"

	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/utils"
)

const maxMessageLength = 4090

// FormatRunSummaryMessage formats a tracker run summary as Markdown.
func FormatRunSummaryMessage(s *dto.RunSummary) string {
	var b strings.Builder

	emoji := "🌅"
	if s.Mode == dto.RunModeAfternoon {
		emoji = "🌇"
	}
	b.WriteString(fmt.Sprintf("%s *Prism Insight %s run* (%s)\n", emoji, s.Mode, s.SessionDate))
	b.WriteString(fmt.Sprintf("%s\n\n", utils.PrettyDate(s.FinishedAt)))

	if s.MarketClosed {
		b.WriteString("💤 Market closed, nothing evaluated.\n")
		return b.String()
	}

	r := s.Result
	if r == nil {
		r = dto.NewCycleResult()
	}
	b.WriteString(fmt.Sprintf("🔎 Candidates: %d  📂 Holdings: %d\n", s.CandidatesDetected, s.HoldingsEvaluated))
	b.WriteString(fmt.Sprintf("🟢 Bought: %d\n", r.Admitted))
	b.WriteString(fmt.Sprintf("🔴 Sold: %d\n", r.Closed))
	b.WriteString(fmt.Sprintf("👀 Watch: %d\n", r.Watched))
	b.WriteString(fmt.Sprintf("⏸ Skipped: %d\n", r.Skipped()))
	for _, reason := range r.SkipReasons() {
		b.WriteString(fmt.Sprintf("   • %s: %d\n", reason, r.SkippedByReason[reason]))
	}
	if r.EvaluationFailed > 0 {
		b.WriteString(fmt.Sprintf("⚠️ Failed: %d\n", r.EvaluationFailed))
	}
	if r.TradeFailures > 0 {
		b.WriteString(fmt.Sprintf("🏦 Trade failures: %d\n", r.TradeFailures))
	}

	var moves []string
	for _, it := range r.Items {
		switch it.Outcome {
		case dto.OutcomeAdmitted:
			moves = append(moves, fmt.Sprintf("🟢 BUY `%s`", it.Ticker))
		case dto.OutcomeClosed:
			moves = append(moves, fmt.Sprintf("🔴 SELL `%s` (%s)", it.Ticker, it.Reason))
		}
	}
	if len(moves) > 0 {
		b.WriteString("\n*Moves*\n")
		b.WriteString(strings.Join(moves, "\n"))
		b.WriteString("\n")
	}
	if r.Cancelled {
		b.WriteString("\n⛔ Run cancelled before completion.\n")
	}

	msg := b.String()
	if len(msg) > maxMessageLength {
		msg = strings.ToValidUTF8(msg[:maxMessageLength], "")
	}
	return msg
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, errMsg, data)
}
