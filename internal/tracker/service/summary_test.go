package service

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *dto.RunSummary {
	r := dto.NewCycleResult()
	r.Record(dto.ItemResult{Kind: dto.ItemKindHolding, Ticker: "HHH", Outcome: dto.OutcomeClosed, Reason: "stop loss hit"})
	r.Record(dto.ItemResult{Kind: dto.ItemKindCandidate, Ticker: "AAA", Outcome: dto.OutcomeAdmitted, Attempts: 1})
	r.Record(dto.ItemResult{Kind: dto.ItemKindCandidate, Ticker: "BBB", Outcome: dto.OutcomeSkipped, Reason: constraint.ReasonNoSlots, Attempts: 1})
	r.Record(dto.ItemResult{Kind: dto.ItemKindCandidate, Ticker: "CCC", Outcome: dto.OutcomeFailed, Error: "oracle returned status 503", Attempts: 3})
	return &dto.RunSummary{
		RunID:              "run-1",
		Mode:               dto.RunModeMorning,
		SessionDate:        "2025-10-14",
		CandidatesDetected: 3,
		HoldingsEvaluated:  1,
		Result:             r,
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, sampleSummary()))

	out := buf.String()
	assert.Contains(t, out, "mode=morning")
	assert.Contains(t, out, "skipped: "+constraint.ReasonNoSlots)
	assert.Contains(t, out, "oracle returned status 503")
	assert.Contains(t, out, "CCC")
}

func TestRenderSummary_MarketClosed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, &dto.RunSummary{RunID: "run-2", Mode: dto.RunModeAfternoon, MarketClosed: true}))
	assert.Contains(t, buf.String(), "Market closed")
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "summary.json")
	require.NoError(t, WriteSummary(jsonPath, sampleSummary()))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded dto.RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded.Result.Admitted)
	assert.Equal(t, 1, decoded.Result.Closed)
	assert.Equal(t, 1, decoded.Result.EvaluationFailed)
	assert.Equal(t, 1, decoded.Result.SkippedByReason[constraint.ReasonNoSlots])

	yamlPath := filepath.Join(dir, "summary.yaml")
	require.NoError(t, WriteSummary(yamlPath, sampleSummary()))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "morning", doc["mode"])
}
