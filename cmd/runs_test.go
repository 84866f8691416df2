package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leads-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Query:     model.Query{Niche: "dentista", Location: "Belo Horizonte, MG", Source: "osm"},
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Outcome: model.OutcomeEnriched, Leads: []model.Lead{{Name: "Acme"}, {Name: "Beta"}}},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Query:     model.Query{Niche: "padaria", Location: "Curitiba, PR", Source: "places"},
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := strings.ToLower(buf.String())
	assert.Contains(t, output, "status")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "dentista @ belo horizonte, mg")
	assert.Contains(t, output, "enriched")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "2m0s")
}

func TestFormatRunsList_LongQueryTruncated(t *testing.T) {
	runs := []model.Run{{
		ID:    "abc",
		Query: model.Query{Niche: strings.Repeat("x", 60), Location: "Rio"},
	}}
	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	assert.Contains(t, buf.String(), strings.Repeat("x", 37)+"...")
}

func TestOutcomeMessage(t *testing.T) {
	tests := []struct {
		name string
		res  model.RunResult
		want string
	}{
		{"no leads", model.RunResult{Status: model.RunStatusComplete, Outcome: model.OutcomeNoLeads}, "no leads found"},
		{"none enriched", model.RunResult{Status: model.RunStatusComplete, Outcome: model.OutcomeNoneEnriched, Failures: make([]model.ProviderFailure, 3)}, "3 failures"},
		{"cancelled", model.RunResult{Status: model.RunStatusCancelled, Processed: 2, Discovered: 5}, "after 2 of 5 leads"},
		{"enriched", model.RunResult{Status: model.RunStatusComplete, Outcome: model.OutcomeEnriched}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outcomeMessage(&tt.res)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestPrintResult(t *testing.T) {
	res := &model.RunResult{
		RunID:      "abc12345-6789",
		Status:     model.RunStatusComplete,
		Outcome:    model.OutcomeNoneEnriched,
		Discovered: 1,
		Leads:      []model.Lead{{Name: "Acme Dental", Phone: "3133334444"}},
		TierCounts: map[string]int{"low": 1},
		CostUSD:    0.0125,
	}
	var buf bytes.Buffer
	printResult(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "Acme Dental")
	assert.Contains(t, out, "run abc12345: complete, 1 discovered")
	assert.Contains(t, out, "cost $0.0125")
	assert.Contains(t, out, "low=1")
	assert.Contains(t, out, "none enriched")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
