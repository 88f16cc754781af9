// Package main provides the continuous event ingestion service: it keeps
// the stored transfer-event history of every tracked wallet in sync with
// the chain via TzKT, optionally triggered by a block-head feed.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tezos-tax-lab/internal/address"
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/observability"
	"tezos-tax-lab/internal/storage"
	chstore "tezos-tax-lab/internal/storage/clickhouse"
	"tezos-tax-lab/internal/storage/migrations"
	pgstore "tezos-tax-lab/internal/storage/postgres"
	"tezos-tax-lab/internal/tzkt"
)

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse connection string for the quote timeseries")
	tzktBase := flag.String("tzkt-base", os.Getenv("TZKT_BASE"), "TzKT API base URL")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("TZKT_WS_ENDPOINT"), "Optional block-head websocket endpoint")
	wallets := flag.String("wallets", "", "Comma-separated wallet addresses to register before syncing")
	quotesCSV := flag.String("quotes-csv", "", "Optional quote CSV to import into ClickHouse at startup")
	syncInterval := flag.Duration("sync-interval", 10*time.Minute, "Wallet sync interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
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

	walletStore := pgstore.NewWalletStore(pool)
	eventStore := pgstore.NewTransferEventStore(pool)

	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse migrations: %v", err)
		}
		defer conn.Close()

		if *quotesCSV != "" {
			n, err := importQuotes(ctx, *quotesCSV, chstore.NewQuoteStore(conn))
			if err != nil {
				logger.Printf("Quote import: %v", err)
			} else {
				logger.Printf("Imported %d quote points", n)
			}
		}
	}

	if err := registerWallets(ctx, walletStore, *wallets, logger); err != nil {
		logger.Fatalf("Register wallets: %v", err)
	}

	go startMetricsServer(*metricsAddr, logger)

	syncer := tzkt.NewSyncer(tzkt.NewClient(*tzktBase), walletStore, eventStore, logger)

	trigger := make(chan struct{}, 1)
	if *wsEndpoint != "" {
		go watchHeads(ctx, *wsEndpoint, trigger, logger)
	}

	logger.Printf("Syncing every %v", *syncInterval)
	runSync := func() {
		if err := syncer.SyncAll(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("Sync: %v", err)
		}
	}
	runSync()

	ticker := time.NewTicker(*syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case <-ticker.C:
			runSync()
		case <-trigger:
			runSync()
		}
	}
}

// watchHeads converts block-head notifications into sync triggers. The
// trigger channel has capacity one so bursts collapse into a single sync.
func watchHeads(ctx context.Context, endpoint string, trigger chan<- struct{}, logger *log.Logger) {
	watcher, err := tzkt.NewHeadWatcher(ctx, endpoint, nil)
	if err != nil {
		logger.Printf("Head watcher: %v (falling back to timer-only sync)", err)
		return
	}
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case head, ok := <-watcher.Heads():
			if !ok {
				return
			}
			observability.UpdateHighestLevel(head.Level)
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}
}

// registerWallets inserts the given addresses, skipping ones already
// tracked.
func registerWallets(ctx context.Context, store storage.WalletStore, list string, logger *log.Logger) error {
	for _, a := range strings.Split(list, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !address.IsValid(a) {
			return fmt.Errorf("invalid address: %s", a)
		}

		err := store.Insert(ctx, &domain.Wallet{
			Address: a,
			AddedAt: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return err
		}
		logger.Printf("Registered wallet %s", a)
	}
	return nil
}

// importQuotes loads a quote CSV (asset,currency,timestamp_ms,price,source)
// into the quote store.
func importQuotes(ctx context.Context, path string, store storage.QuoteStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	var points []*domain.QuotePoint
	for i, rec := range records {
		if len(rec) < 4 {
			return 0, fmt.Errorf("%s: row %d has %d columns, want at least 4", path, i+1, len(rec))
		}
		if i == 0 && rec[0] == "asset" {
			continue
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

// startMetricsServer serves /metrics and /health.
func startMetricsServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
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
