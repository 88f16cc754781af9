// Package main provides the unified service that runs all components
// together:
// - Sync (continuous): TzKT wallet syncing, optionally head-triggered
// - Reporting (scheduled): jurisdiction engine runs persisted to storage
// - HTTP API: health, metrics, status, wallet registration and reports
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"tezos-tax-lab/internal/address"
	"tezos-tax-lab/internal/classify"
	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/observability"
	"tezos-tax-lab/internal/registry"
	"tezos-tax-lab/internal/reporting"
	"tezos-tax-lab/internal/storage"
	chstore "tezos-tax-lab/internal/storage/clickhouse"
	"tezos-tax-lab/internal/storage/memory"
	"tezos-tax-lab/internal/storage/migrations"
	pgstore "tezos-tax-lab/internal/storage/postgres"
	"tezos-tax-lab/internal/tzkt"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	tzktBase       string
	wsEndpoint     string
	syncInterval   time.Duration
	reportInterval time.Duration
	jurisdictions  []domain.Jurisdiction
	reportYear     int

	// Components
	stores    *allStores
	syncer    *tzkt.Syncer
	generator *reporting.Generator
	logger    *log.Logger

	// State
	mu            sync.Mutex
	started       time.Time
	lastSyncRun   time.Time
	lastReportRun time.Time
	syncRuns      int
	reportRuns    int
	syncRunning   bool
	reportRunning bool
}

// allStores holds all storage implementations.
type allStores struct {
	walletStore storage.WalletStore
	eventStore  storage.TransferEventStore
	reportStore storage.ReportStore
	quoteStore  storage.QuoteStore // nil without ClickHouse
}

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse connection string for quotes")
	tzktBase := flag.String("tzkt-base", os.Getenv("TZKT_BASE"), "TzKT API base URL")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("TZKT_WS_ENDPOINT"), "Optional block-head websocket endpoint")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	syncInterval := flag.Duration("sync-interval", 10*time.Minute, "Wallet sync interval")
	reportInterval := flag.Duration("report-interval", 6*time.Hour, "Report generation interval")
	jurisdictions := flag.String("jurisdictions", "IRS,HMRC,CRA,ATO", "Comma-separated jurisdictions to report")
	reportYear := flag.Int("report-year", time.Now().UTC().Year(), "Tax year for scheduled reports")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API address")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	generator := reporting.NewGenerator(
		stores.walletStore,
		stores.eventStore,
		stores.reportStore,
		classify.New(registry.New()),
	)
	if stores.quoteStore != nil {
		generator = generator.WithQuotes(stores.quoteStore)
	}

	server := &Server{
		tzktBase:       *tzktBase,
		wsEndpoint:     *wsEndpoint,
		syncInterval:   *syncInterval,
		reportInterval: *reportInterval,
		jurisdictions:  parseJurisdictions(*jurisdictions),
		reportYear:     *reportYear,
		stores:         stores,
		syncer: tzkt.NewSyncer(tzkt.NewClient(*tzktBase), stores.walletStore, stores.eventStore,
			log.New(os.Stdout, "[sync] ", log.LstdFlags|log.Lshortfile)),
		generator: generator,
		logger:    logger,
		started:   time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// parseJurisdictions parses the comma-separated jurisdiction list.
func parseJurisdictions(list string) []domain.Jurisdiction {
	var out []domain.Jurisdiction
	for _, js := range strings.Split(list, ",") {
		j := domain.Jurisdiction(strings.ToUpper(strings.TrimSpace(js)))
		if j != "" {
			out = append(out, j)
		}
	}
	return out
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			walletStore: memory.NewWalletStore(),
			eventStore:  memory.NewTransferEventStore(),
			reportStore: memory.NewReportStore(),
			quoteStore:  memory.NewQuoteStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		walletStore: pgstore.NewWalletStore(pool),
		eventStore:  pgstore.NewTransferEventStore(pool),
		reportStore: pgstore.NewReportStore(pool),
	}

	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.quoteStore = chstore.NewQuoteStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")

	errCh := make(chan error, 2)

	go func() {
		err := s.runSyncLoop(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("sync loop: %w", err)
		}
	}()

	go func() {
		err := s.runReportScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("report scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runSyncLoop syncs wallets on a timer and on head notifications.
func (s *Server) runSyncLoop(ctx context.Context) error {
	s.logger.Printf("Starting sync loop (interval: %v)...", s.syncInterval)

	trigger := make(chan struct{}, 1)
	if s.wsEndpoint != "" {
		go s.watchHeads(ctx, trigger)
	}

	s.runSync(ctx)

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		case <-trigger:
			s.runSync(ctx)
		}
	}
}

// runSync performs one sync pass if none is in flight.
func (s *Server) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.syncRunning {
		s.mu.Unlock()
		return
	}
	s.syncRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncRunning = false
		s.lastSyncRun = time.Now()
		s.syncRuns++
		s.mu.Unlock()
	}()

	if err := s.syncer.SyncAll(ctx); err != nil && ctx.Err() == nil {
		s.logger.Printf("Sync error: %v", err)
	}
}

// watchHeads converts head notifications into sync triggers.
func (s *Server) watchHeads(ctx context.Context, trigger chan<- struct{}) {
	watcher, err := tzkt.NewHeadWatcher(ctx, s.wsEndpoint, nil)
	if err != nil {
		s.logger.Printf("Head watcher: %v (falling back to timer-only sync)", err)
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

// runReportScheduler regenerates reports on schedule.
func (s *Server) runReportScheduler(ctx context.Context) error {
	s.logger.Printf("Starting report scheduler (interval: %v)...", s.reportInterval)

	ticker := time.NewTicker(s.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runReports(ctx)
		}
	}
}

// runReports regenerates reports for every wallet and jurisdiction.
func (s *Server) runReports(ctx context.Context) {
	s.mu.Lock()
	if s.reportRunning {
		s.mu.Unlock()
		s.logger.Println("Report generation already running, skipping...")
		return
	}
	s.reportRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reportRunning = false
		s.lastReportRun = time.Now()
		s.reportRuns++
		s.mu.Unlock()
	}()

	wallets, err := s.stores.walletStore.GetAll(ctx)
	if err != nil {
		s.logger.Printf("Load wallets: %v", err)
		return
	}

	for _, w := range wallets {
		for _, j := range s.jurisdictions {
			if ctx.Err() != nil {
				return
			}

			start := time.Now()
			report, err := s.generator.Generate(ctx, w.Address, j, s.reportYear)
			if err != nil {
				s.logger.Printf("Generate %s report for %s: %v", j, w.Address, err)
				continue
			}

			observability.RecordReport(string(j), len(report.Disposals), len(report.IncomeEvents), time.Since(start).Seconds())
			s.logger.Printf("%s %d for %s: %d disposals, taxable gain %.2f %s",
				j, s.reportYear, w.Address, report.Summary.TotalDisposals,
				report.Summary.TaxableGain, report.Summary.Currency)
		}
	}
	observability.DefaultMetrics.LastSuccessfulReport.SetToCurrentTime()
}

// startHTTPServer starts the HTTP server for health/metrics/status/API.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/wallets", s.handleWallets)
	mux.HandleFunc("/reports", s.handleReports)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	LastSyncRun   time.Time `json:"last_sync_run,omitempty"`
	LastReportRun time.Time `json:"last_report_run,omitempty"`
	SyncRuns      int       `json:"sync_runs"`
	ReportRuns    int       `json:"report_runs"`
	SyncRunning   bool      `json:"sync_running"`
	ReportRunning bool      `json:"report_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		LastSyncRun:   s.lastSyncRun,
		LastReportRun: s.lastReportRun,
		SyncRuns:      s.syncRuns,
		ReportRuns:    s.reportRuns,
		SyncRunning:   s.syncRunning,
		ReportRunning: s.reportRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWallets lists tracked wallets (GET) or registers one (POST).
func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		wallets, err := s.stores.walletStore.GetAll(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wallets)

	case http.MethodPost:
		var req struct {
			Address  string `json:"address"`
			Alias    string `json:"alias"`
			Delegate string `json:"delegate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if !address.IsValid(req.Address) {
			http.Error(w, "invalid address", http.StatusBadRequest)
			return
		}

		err := s.stores.walletStore.Insert(ctx, &domain.Wallet{
			Address:  req.Address,
			Alias:    req.Alias,
			Delegate: req.Delegate,
			AddedAt:  time.Now().UTC().Format(time.RFC3339),
		})
		if err == storage.ErrDuplicateKey {
			http.Error(w, "wallet already tracked", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleReports lists a wallet's report summaries (GET) or generates one
// on demand (POST).
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReports(w, r)
	case http.MethodPost:
		s.generateReport(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		http.Error(w, "wallet query parameter is required", http.StatusBadRequest)
		return
	}

	reports, err := s.stores.reportStore.GetByWallet(r.Context(), wallet)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type reportSummary struct {
		ReportID     string              `json:"reportId"`
		Year         int                 `json:"year"`
		Jurisdiction domain.Jurisdiction `json:"jurisdiction"`
		GeneratedAt  string              `json:"generatedAt"`
		Summary      domain.TaxSummary   `json:"summary"`
	}
	out := make([]reportSummary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, reportSummary{
			ReportID:     rep.ReportID,
			Year:         rep.Year,
			Jurisdiction: rep.Jurisdiction,
			GeneratedAt:  rep.GeneratedAt,
			Summary:      rep.Summary,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet       string `json:"wallet"`
		Jurisdiction string `json:"jurisdiction"`
		Year         int    `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Wallet == "" {
		http.Error(w, "wallet is required", http.StatusBadRequest)
		return
	}

	j := domain.Jurisdiction(strings.ToUpper(strings.TrimSpace(req.Jurisdiction)))
	switch j {
	case domain.JurisdictionIRS, domain.JurisdictionHMRC, domain.JurisdictionCRA, domain.JurisdictionATO:
	default:
		http.Error(w, "unknown jurisdiction", http.StatusBadRequest)
		return
	}

	start := time.Now()
	report, err := s.generator.Generate(r.Context(), req.Wallet, j, req.Year)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "wallet not tracked", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	observability.RecordReport(string(j), len(report.Disposals), len(report.IncomeEvents), time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		ReportID     string              `json:"reportId"`
		Year         int                 `json:"year"`
		Jurisdiction domain.Jurisdiction `json:"jurisdiction"`
		GeneratedAt  string              `json:"generatedAt"`
		Summary      domain.TaxSummary   `json:"summary"`
	}{report.ReportID, report.Year, report.Jurisdiction, report.GeneratedAt, report.Summary})
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
