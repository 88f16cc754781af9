// Package main generates tax reports from stored data: it loads a
// wallet's synced history from PostgreSQL, runs the selected jurisdiction
// engines, persists the reports and writes their CSV/JSON renderings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tezos-tax-lab/internal/classify"
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/observability"
	"tezos-tax-lab/internal/registry"
	"tezos-tax-lab/internal/reporting"
	chstore "tezos-tax-lab/internal/storage/clickhouse"
	"tezos-tax-lab/internal/storage/migrations"
	pgstore "tezos-tax-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse connection string for quotes")
	wallet := flag.String("wallet", "", "Wallet address to report on")
	year := flag.Int("year", time.Now().UTC().Year()-1, "Tax year")
	jurisdictions := flag.String("jurisdictions", "IRS,HMRC,CRA,ATO", "Comma-separated jurisdictions to report")
	outDir := flag.String("out", "output", "Output directory")
	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *wallet == "" {
		logger.Fatal("--wallet is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations: %v", err)
	}

	gen := reporting.NewGenerator(
		pgstore.NewWalletStore(pool),
		pgstore.NewTransferEventStore(pool),
		pgstore.NewReportStore(pool),
		classify.New(registry.New()),
	)

	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Connect clickhouse: %v", err)
		}
		defer conn.Close()
		gen = gen.WithQuotes(chstore.NewQuoteStore(conn))
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}

	for _, js := range strings.Split(*jurisdictions, ",") {
		j := domain.Jurisdiction(strings.ToUpper(strings.TrimSpace(js)))
		if j == "" {
			continue
		}

		start := time.Now()
		report, err := gen.Generate(ctx, *wallet, j, *year)
		if err != nil {
			logger.Fatalf("Generate %s report: %v", j, err)
		}

		observability.RecordReport(string(j), len(report.Disposals), len(report.IncomeEvents), time.Since(start).Seconds())
		logger.Printf("%s %d: %d disposals, taxable gain %.2f %s",
			j, *year, report.Summary.TotalDisposals, report.Summary.TaxableGain, report.Summary.Currency)

		if err := writeReportFiles(*outDir, report); err != nil {
			logger.Fatalf("Write %s report: %v", j, err)
		}
	}

	logger.Printf("Reports written to %s/", *outDir)
}

// writeReportFiles writes a report's ledger, disposals and income CSVs
// plus the summary JSON.
func writeReportFiles(outDir string, r *domain.TaxReport) error {
	prefix := fmt.Sprintf("%s_%d", strings.ToLower(string(r.Jurisdiction)), r.Year)

	ledger := reporting.RenderLedgerCSV(r.Ledger)
	if err := os.WriteFile(filepath.Join(outDir, prefix+"_ledger.csv"), []byte(ledger), 0644); err != nil {
		return err
	}

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

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
