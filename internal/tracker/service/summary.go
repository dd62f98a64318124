package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"prism-insight/internal/tracker/dto"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// RenderSummary prints the run counters and the per-item outcomes.
func RenderSummary(w io.Writer, s *dto.RunSummary) error {
	fmt.Fprintf(w, "Run %s  mode=%s  session=%s\n", s.RunID, s.Mode, s.SessionDate)
	if s.MarketClosed {
		fmt.Fprintln(w, "Market closed, nothing evaluated.")
		return nil
	}
	r := s.Result
	if r == nil {
		r = dto.NewCycleResult()
	}

	counts := tablewriter.NewWriter(w)
	counts.Header("Outcome", "Count")
	counts.Append("candidates detected", strconv.Itoa(s.CandidatesDetected))
	counts.Append("holdings evaluated", strconv.Itoa(s.HoldingsEvaluated))
	counts.Append("admitted", strconv.Itoa(r.Admitted))
	counts.Append("watched", strconv.Itoa(r.Watched))
	counts.Append("held", strconv.Itoa(r.Held))
	counts.Append("closed", strconv.Itoa(r.Closed))
	for _, reason := range r.SkipReasons() {
		counts.Append("skipped: "+reason, strconv.Itoa(r.SkippedByReason[reason]))
	}
	counts.Append("evaluation failed", strconv.Itoa(r.EvaluationFailed))
	if r.TradeFailures > 0 {
		counts.Append("trade failures", strconv.Itoa(r.TradeFailures))
	}
	if err := counts.Render(); err != nil {
		return err
	}

	if len(r.Items) == 0 {
		return nil
	}
	items := tablewriter.NewWriter(w)
	items.Header("#", "Kind", "Ticker", "Outcome", "Reason", "Attempts")
	for i, it := range r.Items {
		reason := it.Reason
		if it.Error != "" {
			reason = it.Error
		}
		items.Append(strconv.Itoa(i+1), string(it.Kind), it.Ticker, string(it.Outcome), reason, strconv.Itoa(it.Attempts))
	}
	if err := items.Render(); err != nil {
		return err
	}
	if r.Cancelled {
		fmt.Fprintln(w, "Run was cancelled before every item was processed.")
	}
	return nil
}

// WriteSummary stores s at path, as YAML for .yaml/.yml and JSON otherwise.
func WriteSummary(path string, s *dto.RunSummary) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
