package repository

import (
	"fmt"
	"strings"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/utils"
)

func BuildCandidatePrompt(req *dto.CandidateOracleRequest) string {
	var holdings strings.Builder
	if len(req.Holdings) == 0 {
		holdings.WriteString("(none)\n")
	}
	for _, h := range req.Holdings {
		holdings.WriteString(fmt.Sprintf("- %s (%s) sector=%s buy_price=%.2f current_price=%.2f buy_date=%s\n",
			h.Ticker, h.CompanyName, h.Sector, h.BuyPrice, h.CurrentPrice, utils.FormatDate(h.BuyDate)))
	}

	return fmt.Sprintf(`You are a disciplined swing trader on the Korean stock market (KOSPI/KOSDAQ).
A screening pass flagged the stock below during the %s session of %s. Decide whether to enter a position.

Stock:
- Ticker: %s
- Name: %s
- Sector: %s
- Open: %.2f  High: %.2f  Low: %.2f  Close: %.2f
- Volume: %.0f  Traded value: %.0f  Market cap: %.0f

Screening metrics:
- Rank: %d  Composite score: %.4f
- Volume surge ratio: %.2fx
- Gap-up: %.2f%%
- Turnover ratio: %.4f%%
- Close strength: %.2f

Market condition:
%s
Current portfolio (%d slots available):
%s
Recent headlines:
%s
Rules:
- Give "buy_score" from 1 (poor) to 10 (excellent).
- "decision" must be one of "BUY", "SKIP" or "WATCH". Use WATCH for setups worth tracking that are not ready yet.
- "target_price" must be above the current close and "stop_loss" below it.
- Answer with a single JSON object and nothing else.

{
  "decision": "BUY | SKIP | WATCH",
  "buy_score": <integer 1-10>,
  "target_price": <number>,
  "stop_loss": <number>,
  "investment_period": "short | medium | long",
  "sector": "<string>",
  "rationale": "<string, at most 3 sentences>",
  "market_condition": "<string, one sentence>"
}`,
		req.Mode, utils.FormatDate(req.SessionDate),
		req.Ticker, req.CompanyName, orUnknown(req.Sector),
		req.Quote.Open, req.Quote.High, req.Quote.Low, req.Quote.Close,
		req.Quote.Volume, req.Quote.Amount, req.Quote.MarketCap,
		req.Rank, req.CompositeScore,
		req.VolumeSurgeRatio, req.GapUpPct, req.TurnoverRatio*100, req.CloseStrength,
		describeMarket(req.MarketCondition),
		req.AvailableSlots, holdings.String(),
		describeNews(req.News),
	)
}

func BuildHoldingPrompt(req *dto.HoldingOracleRequest) string {
	h := req.Holding
	profit := 0.0
	if h.BuyPrice > 0 {
		profit = (req.CurrentPrice - h.BuyPrice) / h.BuyPrice * 100
	}

	session := "(no session quote)\n"
	if req.Quote != nil {
		session = fmt.Sprintf("- Open: %.2f  High: %.2f  Low: %.2f  Close: %.2f  Volume: %.0f\n",
			req.Quote.Open, req.Quote.High, req.Quote.Low, req.Quote.Close, req.Quote.Volume)
	}

	return fmt.Sprintf(`You are a disciplined swing trader on the Korean stock market (KOSPI/KOSDAQ).
Review the open position below after the %s session of %s and decide whether to sell it.

Position:
- Ticker: %s
- Name: %s
- Sector: %s
- Buy price: %.2f on %s (%d days held)
- Current price: %.2f (%.2f%%)
- Target price: %.2f
- Stop loss: %.2f
- Planned period: %s
- Entry rationale: %s

Session:
%s
Market condition:
%s
Recent headlines:
%s
Rules:
- "should_sell" is true only when the thesis is broken or the upside is exhausted.
- "confidence" from 1 to 10.
- Fill "portfolio_adjustment" only when the target or stop loss should move. Leave prices at 0 otherwise.
- Answer with a single JSON object and nothing else.

{
  "should_sell": <true | false>,
  "sell_reason": "<string>",
  "confidence": <integer 1-10>,
  "analysis_summary": {
    "technical_trend": "<string>",
    "volume_analysis": "<string>",
    "market_condition_impact": "<string>",
    "time_factor": "<string>"
  },
  "portfolio_adjustment": {
    "needed": <true | false>,
    "reason": "<string>",
    "new_target_price": <number>,
    "new_stop_loss": <number>,
    "urgency": "high | medium | low"
  }
}`,
		req.Mode, utils.FormatDate(req.SessionDate),
		h.Ticker, h.CompanyName, orUnknown(h.Sector),
		h.BuyPrice, utils.FormatDate(h.BuyDate), utils.DaysBetween(h.BuyDate, req.SessionDate),
		req.CurrentPrice, profit,
		h.TargetPrice, h.StopLoss,
		orUnknown(h.InvestmentPeriod), orUnknown(h.Rationale),
		session,
		describeMarket(req.MarketCondition),
		describeNews(req.News),
	)
}

func describeMarket(mc *entity.MarketCondition) string {
	if mc == nil {
		return "(unavailable)\n"
	}
	return fmt.Sprintf("- KOSPI %.2f (%.2f%%), KOSDAQ %.2f (%.2f%%)\n- Condition %d on a -2 (strong bear) to 2 (strong bull) scale, volatility %.2f\n",
		mc.KospiIndex, mc.KospiChangePct, mc.KosdaqIndex, mc.KosdaqChangePct, mc.Condition, mc.Volatility)
}

func describeNews(items []dto.NewsItem) string {
	if len(items) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for i, n := range items {
		published := "N/A"
		if n.PublishedAt != nil {
			published = n.PublishedAt.Format("2006-01-02 15:04")
		}
		b.WriteString(fmt.Sprintf("%d. %s (%s, %s)\n", i+1, n.Title, orUnknown(n.Source), published))
		if n.Summary != "" {
			b.WriteString("   " + n.Summary + "\n")
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
