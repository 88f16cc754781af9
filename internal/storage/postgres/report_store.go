package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL. The report
// body (ledger, disposals, income, summary) is stored as a single JSONB
// document; identifying fields are broken out into columns for querying.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// reportBody is the JSONB payload of one report row.
type reportBody struct {
	Ledger       []*domain.TransferEvent `json:"ledger"`
	Disposals    []*domain.Disposal      `json:"disposals"`
	IncomeEvents []*domain.IncomeEvent   `json:"incomeEvents"`
	Summary      domain.TaxSummary       `json:"summary"`
}

// Insert adds a new report. Returns ErrDuplicateKey if report_id exists.
func (s *ReportStore) Insert(ctx context.Context, r *domain.TaxReport) error {
	if r == nil || r.ReportID == "" {
		return storage.ErrInvalidInput
	}

	body, err := json.Marshal(reportBody{
		Ledger:       r.Ledger,
		Disposals:    r.Disposals,
		IncomeEvents: r.IncomeEvents,
		Summary:      r.Summary,
	})
	if err != nil {
		return fmt.Errorf("marshal report body: %w", err)
	}

	query := `
		INSERT INTO tax_reports (report_id, wallet, year, jurisdiction, generated_at, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ReportID, r.Wallet, r.Year, r.Jurisdiction, r.GeneratedAt, body,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID retrieves a report. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(ctx context.Context, reportID string) (*domain.TaxReport, error) {
	query := `
		SELECT report_id, wallet, year, jurisdiction, generated_at, body
		FROM tax_reports
		WHERE report_id = $1
	`

	r, err := scanReport(s.pool.QueryRow(ctx, query, reportID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get report by id: %w", err)
	}
	return r, nil
}

// GetByWallet retrieves all reports for a wallet, newest first.
func (s *ReportStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.TaxReport, error) {
	query := `
		SELECT report_id, wallet, year, jurisdiction, generated_at, body
		FROM tax_reports
		WHERE wallet = $1
		ORDER BY generated_at DESC, report_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get reports by wallet: %w", err)
	}
	defer rows.Close()

	var reports []*domain.TaxReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}

	return reports, nil
}

// Delete removes a report. Returns ErrNotFound if not exists.
func (s *ReportStore) Delete(ctx context.Context, reportID string) error {
	query := `
		DELETE FROM tax_reports WHERE report_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, reportID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanReport scans one row into a TaxReport, rehydrating the JSONB body.
func scanReport(row pgx.Row) (*domain.TaxReport, error) {
	var r domain.TaxReport
	var body []byte

	err := row.Scan(&r.ReportID, &r.Wallet, &r.Year, &r.Jurisdiction, &r.GeneratedAt, &body)
	if err != nil {
		return nil, err
	}

	var b reportBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("unmarshal report body: %w", err)
	}
	r.Ledger = b.Ledger
	r.Disposals = b.Disposals
	r.IncomeEvents = b.IncomeEvents
	r.Summary = b.Summary

	return &r, nil
}
