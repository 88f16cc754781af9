package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Insert adds a new wallet. Returns ErrDuplicateKey if the address exists.
func (s *WalletStore) Insert(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallets (address, alias, delegate, added_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, w.Address, w.Alias, w.Delegate, w.AddedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByAddress retrieves a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `
		SELECT address, alias, delegate, added_at
		FROM wallets
		WHERE address = $1
	`

	var w domain.Wallet
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&w.Address, &w.Alias, &w.Delegate, &w.AddedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by address: %w", err)
	}
	return &w, nil
}

// GetAll retrieves all wallets ordered by address.
func (s *WalletStore) GetAll(ctx context.Context) ([]*domain.Wallet, error) {
	query := `
		SELECT address, alias, delegate, added_at
		FROM wallets
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all wallets: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// SetDelegate updates a wallet's current delegate address.
func (s *WalletStore) SetDelegate(ctx context.Context, address, delegate string) error {
	query := `
		UPDATE wallets SET delegate = $2 WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, address, delegate)
	if err != nil {
		return fmt.Errorf("set wallet delegate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a wallet. Returns ErrNotFound if not exists.
func (s *WalletStore) Delete(ctx context.Context, address string) error {
	query := `
		DELETE FROM wallets WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, address)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanWallets scans multiple rows into a slice of Wallet.
func scanWallets(rows pgx.Rows) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet

	for rows.Next() {
		var w domain.Wallet

		err := rows.Scan(&w.Address, &w.Alias, &w.Delegate, &w.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}

		wallets = append(wallets, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}

	return wallets, nil
}
