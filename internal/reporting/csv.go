package reporting

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"tezos-tax-lab/internal/domain"
)

// Column orders are part of the output contract and must remain stable
// across versions for downstream tooling.

var ledgerColumns = []string{
	"timestamp", "level", "op_hash", "kind", "direction", "counterparty",
	"counterparty_type", "asset", "quantity", "fee_xtz", "mint",
	"classification", "confidence", "note",
}

var incomeColumns = []string{
	"timestamp", "asset", "quantity", "fmv_per_unit", "amount",
	"classification", "op_hash",
}

// disposalColumns returns the fixed column order for a jurisdiction's
// disposal CSV. The shared prefix matches across jurisdictions; each adds
// its own fields.
func disposalColumns(j domain.Jurisdiction) []string {
	cur := strings.ToLower(string(j.ReportCurrency()))
	base := []string{
		"timestamp", "asset", "qty_disposed",
		"fmv_per_unit_" + cur, "proceeds_" + cur,
	}
	switch j {
	case domain.JurisdictionIRS:
		return append(base, "basis_"+cur+"_fifo", "gain_"+cur,
			"fee_xtz", "op_hash", "lot_breakdown_json", "note")
	case domain.JurisdictionHMRC:
		return append(base, "allowable_cost_"+cur, "gain_"+cur,
			"op_hash", "matching_breakdown_json", "note")
	case domain.JurisdictionCRA:
		return append(base, "acb_cost_"+cur, "acb_per_unit_"+cur, "gain_"+cur,
			"taxable_gain_"+cur, "op_hash", "breakdown_json", "note")
	case domain.JurisdictionATO:
		return append(base, "cost_"+cur, "gain_"+cur, "long_term",
			"taxable_gain_"+cur, "op_hash", "lot_breakdown_json", "note")
	default:
		return append(base, "cost_"+cur, "gain_"+cur,
			"op_hash", "breakdown_json", "note")
	}
}

// RenderLedgerCSV renders the annotated event ledger.
func RenderLedgerCSV(events []*domain.TransferEvent) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(ledgerColumns)
	for _, e := range events {
		w.Write([]string{
			e.Timestamp,
			strconv.FormatInt(e.Level, 10),
			e.OpHash,
			string(e.Kind),
			string(e.Direction),
			e.Counterparty,
			string(e.CounterpartyType),
			e.Asset,
			formatQty(e.Quantity),
			formatQty(e.FeeXTZ),
			strconv.FormatBool(e.Mint),
			string(e.Classification),
			string(e.Confidence),
			e.Note,
		})
	}
	w.Flush()
	return sb.String()
}

// RenderDisposalsCSV renders disposals in the jurisdiction's fixed column
// order.
func RenderDisposalsCSV(j domain.Jurisdiction, disposals []*domain.Disposal) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(disposalColumns(j))
	for _, d := range disposals {
		w.Write(disposalRow(j, d))
	}
	w.Flush()
	return sb.String()
}

func disposalRow(j domain.Jurisdiction, d *domain.Disposal) []string {
	base := []string{
		d.Timestamp,
		d.Asset,
		formatQty(d.Quantity),
		formatMoney(d.FMVPerUnit),
		formatMoney(d.Proceeds),
	}
	breakdown := breakdownJSON(d.Breakdown)

	switch j {
	case domain.JurisdictionIRS:
		return append(base,
			formatMoney(d.Cost), formatMoney(d.Gain),
			formatQty(d.FeeXTZ), d.OpHash, breakdown, d.Note)
	case domain.JurisdictionHMRC:
		return append(base,
			formatMoney(d.Cost), formatMoney(d.Gain),
			d.OpHash, breakdown, d.Note)
	case domain.JurisdictionCRA:
		acbPer := 0.0
		if d.Quantity > 0 {
			acbPer = d.Cost / d.Quantity
		}
		return append(base,
			formatMoney(d.Cost), formatMoney(acbPer), formatMoney(d.Gain),
			formatMoney(d.TaxableGain), d.OpHash, breakdown, d.Note)
	case domain.JurisdictionATO:
		return append(base,
			formatMoney(d.Cost), formatMoney(d.Gain),
			strconv.FormatBool(d.LongTerm), formatMoney(d.TaxableGain),
			d.OpHash, breakdown, d.Note)
	default:
		return append(base,
			formatMoney(d.Cost), formatMoney(d.Gain),
			d.OpHash, breakdown, d.Note)
	}
}

// RenderIncomeCSV renders income events.
func RenderIncomeCSV(income []*domain.IncomeEvent) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(incomeColumns)
	for _, ie := range income {
		w.Write([]string{
			ie.Timestamp,
			ie.Asset,
			formatQty(ie.Quantity),
			formatMoney(ie.FMVPerUnit),
			formatMoney(ie.Amount),
			string(ie.Classification),
			ie.OpHash,
		})
	}
	w.Flush()
	return sb.String()
}

// breakdownJSON serializes a disposal's lot/pool breakdown as a compact
// JSON array for the audit column.
func breakdownJSON(breakdown []domain.LotConsumption) string {
	if len(breakdown) == 0 {
		return "[]"
	}
	data, err := json.Marshal(breakdown)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// formatQty formats a quantity without trailing zeros.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatMoney formats an already-rounded monetary figure.
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
