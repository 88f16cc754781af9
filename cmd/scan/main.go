// Package main provides a one-shot tax scan: fetch a wallet's on-chain
// activity from TzKT, classify it, run the selected jurisdiction engines
// and write CSV/JSON reports to an output directory.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tezos-tax-lab/internal/address"
	"tezos-tax-lab/internal/classify"
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/registry"
	"tezos-tax-lab/internal/reporting"
	"tezos-tax-lab/internal/storage/memory"
	"tezos-tax-lab/internal/taxengine"
	"tezos-tax-lab/internal/tzkt"
)

func main() {
	addr := flag.String("address", "", "Tezos wallet address (tz1/tz2/tz3)")
	year := flag.Int("year", 2025, "Tax year to scan")
	jurisdictions := flag.String("jurisdictions", "IRS,HMRC,CRA,ATO", "Comma-separated jurisdictions to report")
	tzktBase := flag.String("tzkt-base", tzkt.DefaultBaseURL, "TzKT API base URL")
	quotesCSV := flag.String("quotes-csv", "", "Optional CSV of fair-value quotes (asset,currency,timestamp_ms,price,source)")
	delegate := flag.String("delegate", "", "Baker the wallet delegates to (improves reward detection)")
	outDir := flag.String("out", "output", "Output directory")
	flag.Parse()

	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags)

	if *addr == "" {
		logger.Fatal("--address is required")
	}
	if !address.IsValid(*addr) {
		logger.Fatalf("invalid Tezos address: %s", *addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling scan...", sig)
		cancel()
	}()

	from := fmt.Sprintf("%04d-01-01T00:00:00Z", *year)
	to := fmt.Sprintf("%04d-01-01T00:00:00Z", *year+1)

	logger.Printf("Fetching %d activity for %s from TzKT...", *year, *addr)
	client := tzkt.NewClient(*tzktBase)
	events, err := client.SyncWallet(ctx, *addr, from, to)
	if err != nil {
		logger.Fatalf("Sync failed: %v", err)
	}
	logger.Printf("Built %d transfer events", len(events))

	if *quotesCSV != "" {
		quoteStore := memory.NewQuoteStore()
		n, err := loadQuotesCSV(ctx, *quotesCSV, quoteStore)
		if err != nil {
			logger.Fatalf("Load quotes: %v", err)
		}
		logger.Printf("Loaded %d quote points", n)

		if err := reporting.NewEnricher(quoteStore).Enrich(ctx, events); err != nil {
			logger.Fatalf("Enrich quotes: %v", err)
		}
	}

	delegates := map[string]string{}
	if *delegate != "" {
		delegates[*addr] = *delegate
	}
	classify.New(registry.New()).Classify(events, []string{*addr}, delegates)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}

	ledgerPath := filepath.Join(*outDir, fmt.Sprintf("ledger_%s_%d.csv", *addr, *year))
	if err := os.WriteFile(ledgerPath, []byte(reporting.RenderLedgerCSV(events)), 0644); err != nil {
		logger.Fatalf("Write ledger: %v", err)
	}
	logger.Printf("Wrote %s", ledgerPath)

	for _, js := range strings.Split(*jurisdictions, ",") {
		j := domain.Jurisdiction(strings.ToUpper(strings.TrimSpace(js)))
		if j == "" {
			continue
		}

		engine, err := taxengine.NewEngine(j, taxengine.Options{Wallet: *addr, Year: *year})
		if err != nil {
			logger.Fatalf("%v", err)
		}

		start := time.Now()
		report, err := engine.Run(events)
		if err != nil {
			logger.Fatalf("%s engine: %v", j, err)
		}
		logger.Printf("%s: %d disposals, %d income events in %v",
			j, len(report.Disposals), len(report.IncomeEvents), time.Since(start))

		if err := writeReportFiles(*outDir, report); err != nil {
			logger.Fatalf("Write %s report: %v", j, err)
		}
	}

	logger.Println("Scan complete")
}

// writeReportFiles writes a report's disposals and income CSVs plus the
// summary JSON.
func writeReportFiles(outDir string, r *domain.TaxReport) error {
	prefix := strings.ToLower(string(r.Jurisdiction))

	disposals := reporting.RenderDisposalsCSV(r.Jurisdiction, r.Disposals)
	if err := os.WriteFile(filepath.Join(outDir, prefix+"_disposals.csv"), []byte(disposals), 0644); err != nil {
		return err
	}

	income := reporting.RenderIncomeCSV(r.IncomeEvents)
	if err := os.WriteFile(filepath.Join(outDir, prefix+"_income.csv"), []byte(income), 0644); err != nil {
		return err
	}

	summary, err := reporting.RenderSummaryJSON(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, prefix+"_summary.json"), []byte(summary), 0644)
}

// loadQuotesCSV imports quote points from a CSV with the columns
// asset,currency,timestamp_ms,price,source (header optional).
func loadQuotesCSV(ctx context.Context, path string, store *memory.QuoteStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	var points []*domain.QuotePoint
	for i, rec := range records {
		if len(rec) < 4 {
			return 0, fmt.Errorf("%s: row %d has %d columns, want at least 4", path, i+1, len(rec))
		}
		if i == 0 && rec[0] == "asset" {
			continue // header
		}

		tsMs, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: row %d: bad timestamp_ms: %w", path, i+1, err)
		}
		price, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return 0, fmt.Errorf("%s: row %d: bad price: %w", path, i+1, err)
		}

		source := ""
		if len(rec) > 4 {
			source = rec[4]
		}
		points = append(points, &domain.QuotePoint{
			Asset:       rec[0],
			Currency:    domain.Currency(strings.ToUpper(rec[1])),
			TimestampMs: tsMs,
			Price:       price,
			Source:      source,
		})
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}
