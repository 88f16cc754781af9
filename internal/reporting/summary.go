package reporting

import (
	"encoding/json"
	"fmt"

	"tezos-tax-lab/internal/domain"
)

// summaryEnvelope is the JSON shape of a rendered report summary.
type summaryEnvelope struct {
	ReportID     string              `json:"reportId"`
	Wallet       string              `json:"wallet"`
	Year         int                 `json:"year"`
	Jurisdiction domain.Jurisdiction `json:"jurisdiction"`
	GeneratedAt  string              `json:"generatedAt"`
	EventCount   int                 `json:"eventCount"`
	IncomeCount  int                 `json:"incomeCount"`
	Summary      domain.TaxSummary   `json:"summary"`
}

// RenderSummaryJSON renders a report's header and totals as indented JSON.
func RenderSummaryJSON(r *domain.TaxReport) (string, error) {
	env := summaryEnvelope{
		ReportID:     r.ReportID,
		Wallet:       r.Wallet,
		Year:         r.Year,
		Jurisdiction: r.Jurisdiction,
		GeneratedAt:  r.GeneratedAt,
		EventCount:   len(r.Ledger),
		IncomeCount:  len(r.IncomeEvents),
		Summary:      r.Summary,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}
