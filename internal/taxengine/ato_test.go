package taxengine

import (
	"testing"

	"tezos-tax-lab/internal/domain"
)

func TestATO_LongTermDiscount(t *testing.T) {
	// 10 acquired 2022 (long-term by the 2024 disposal), 10 acquired a
	// month before (short-term). Dispose 15 @ 30: FIFO takes 10 long-term
	// @ 10 and 5 short-term @ 20.
	events := []*domain.TransferEvent{
		acquisition("old", "2022-01-01T00:00:00Z", 10, 10),
		acquisition("new", "2024-05-01T00:00:00Z", 10, 20),
		taxableDisposal("d1", "2024-06-01T00:00:00Z", 15, 30),
	}

	report, err := NewATO(Options{Wallet: "tz1wallet"}).Run(events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Disposals) != 1 {
		t.Fatalf("expected 1 disposal, got %d", len(report.Disposals))
	}
	d := report.Disposals[0]
	if !d.LongTerm {
		t.Error("disposal consuming a >12-month lot should be marked long-term")
	}
	// Gain = 15*30 - (10*10 + 5*20) = 450 - 200 = 250.
	if !approxEqual(d.Gain, 250) {
		t.Errorf("expected gain 250, got %f", d.Gain)
	}
	// Long-term share 200, discounted by half: taxable 250 - 100 = 150.
	if !approxEqual(d.TaxableGain, 150) {
		t.Errorf("expected taxable gain 150, got %f", d.TaxableGain)
	}

	s := report.Summary
	if !approxEqual(s.ShortTermGain, 50) {
		t.Errorf("expected short-term gain 50, got %f", s.ShortTermGain)
	}
	if !approxEqual(s.LongTermGain, 200) {
		t.Errorf("expected long-term gain 200, got %f", s.LongTermGain)
	}
	if !approxEqual(s.CGTDiscount, 100) {
		t.Errorf("expected CGT discount 100, got %f", s.CGTDiscount)
	}
	if !approxEqual(s.TaxableGain, 150) {
		t.Errorf("expected taxable gain 150, got %f", s.TaxableGain)
	}
	if s.Currency != domain.CurrencyAUD {
		t.Errorf("ATO reports in AUD, got %s", s.Currency)
	}
}

func TestATO_NoDiscountOnNetLongTermLoss(t *testing.T) {
	// Long-term position disposed at a loss: the discount never applies to
	// a net loss.
	events := []*domain.TransferEvent{
		acquisition("old", "2022-01-01T00:00:00Z", 10, 30),
		taxableDisposal("d1", "2024-06-01T00:00:00Z", 10, 10),
	}

	report, err := NewATO(Options{Wallet: "tz1wallet"}).Run(events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := report.Summary
	if !approxEqual(s.LongTermGain, -200) {
		t.Errorf("expected long-term loss -200, got %f", s.LongTermGain)
	}
	if s.CGTDiscount != 0 {
		t.Errorf("no discount on a net long-term loss, got %f", s.CGTDiscount)
	}
	if !approxEqual(s.TaxableGain, -200) {
		t.Errorf("expected taxable -200, got %f", s.TaxableGain)
	}
}

func TestATO_ExactlyTwelveMonthsIsShortTerm(t *testing.T) {
	// Held exactly 12 months: not "more than", so short-term.
	events := []*domain.TransferEvent{
		acquisition("a1", "2023-06-01T00:00:00Z", 10, 10),
		taxableDisposal("d1", "2024-06-01T00:00:00Z", 10, 20),
	}

	report, err := NewATO(Options{Wallet: "tz1wallet"}).Run(events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := report.Summary
	if !approxEqual(s.ShortTermGain, 100) {
		t.Errorf("expected short-term gain 100, got %f", s.ShortTermGain)
	}
	if s.LongTermGain != 0 {
		t.Errorf("expected no long-term gain, got %f", s.LongTermGain)
	}
	if report.Disposals[0].LongTerm {
		t.Error("exactly 12 months is not long-term")
	}
}

func TestATO_ZeroBasisRemainderIsShortTerm(t *testing.T) {
	// A remainder with no acquisition date has no holding period and counts
	// as short-term.
	events := []*domain.TransferEvent{
		taxableDisposal("d1", "2024-06-01T00:00:00Z", 10, 5),
	}

	report, err := NewATO(Options{Wallet: "tz1wallet"}).Run(events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := report.Summary
	if !approxEqual(s.ShortTermGain, 50) {
		t.Errorf("expected short-term gain 50, got %f", s.ShortTermGain)
	}
	if s.CGTDiscount != 0 {
		t.Errorf("expected no discount, got %f", s.CGTDiscount)
	}
	if report.Disposals[0].LongTerm {
		t.Error("zero-basis disposal should not be long-term")
	}
}

func TestATO_YearFilterRestrictsSummaryPartitions(t *testing.T) {
	// A 2023 long-term disposal stays out of the 2024 summary partitions.
	events := []*domain.TransferEvent{
		acquisition("a1", "2021-01-01T00:00:00Z", 20, 10),
		taxableDisposal("d1", "2023-06-01T00:00:00Z", 10, 30),
		taxableDisposal("d2", "2024-06-01T00:00:00Z", 10, 30),
	}

	report, err := NewATO(Options{Wallet: "tz1wallet", Year: 2024}).Run(events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Disposals) != 1 {
		t.Fatalf("expected only the 2024 disposal, got %d", len(report.Disposals))
	}
	s := report.Summary
	// Only d2: long-term gain 200, discount 100.
	if !approxEqual(s.LongTermGain, 200) {
		t.Errorf("expected long-term gain 200, got %f", s.LongTermGain)
	}
	if !approxEqual(s.TaxableGain, 100) {
		t.Errorf("expected taxable 100, got %f", s.TaxableGain)
	}
}
