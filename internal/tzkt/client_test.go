package tzkt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"tezos-tax-lab/internal/domain"
)

const testWallet = "tz1WalletUnderTestXXXXXXXXXXXXXXXXXX"

func jsonNumber(s string) *json.Number {
	n := json.Number(s)
	return &n
}

// newTestServer serves canned pages for both TzKT endpoints.
func newTestServer(t *testing.T, txs []Transaction, transfers []TokenTransfer) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			t.Errorf("missing limit parameter in %s", r.URL)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/operations/transactions":
			if got := q.Get("anyof.sender.target"); got != testWallet {
				t.Errorf("expected anyof.sender.target=%s, got %s", testWallet, got)
			}
			writePage(w, txs, offset, limit)
		case "/tokens/transfers":
			if got := q.Get("anyof.from.to"); got != testWallet {
				t.Errorf("expected anyof.from.to=%s, got %s", testWallet, got)
			}
			writePage(w, transfers, offset, limit)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func writePage[T any](w http.ResponseWriter, rows []T, offset, limit int) {
	if offset > len(rows) {
		offset = len(rows)
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	json.NewEncoder(w).Encode(rows[offset:end])
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, WithDelay(0), WithPageLimit(2))
}

func TestTransactions_Pagination(t *testing.T) {
	txs := make([]Transaction, 5)
	for i := range txs {
		txs[i] = Transaction{
			ID:        int64(i + 1),
			Level:     int64(1000 + i),
			Timestamp: fmt.Sprintf("2025-03-0%dT00:00:00Z", i+1),
			Hash:      fmt.Sprintf("op%d", i+1),
			Sender:    &AccountRef{Address: testWallet},
			Target:    &AccountRef{Address: "tz1other"},
			Amount:    1_000_000,
		}
	}

	server := newTestServer(t, txs, nil)
	defer server.Close()

	got, err := testClient(server.URL).Transactions(context.Background(), testWallet,
		"2025-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	// Page size 2: three pages, the last one short.
	if len(got) != 5 {
		t.Fatalf("expected 5 transactions across pages, got %d", len(got))
	}
	if got[4].Hash != "op5" {
		t.Errorf("expected last transaction op5, got %s", got[4].Hash)
	}
}

func TestSyncWallet_BuildsSortedEvents(t *testing.T) {
	txs := []Transaction{
		{
			ID: 2, Level: 2000, Timestamp: "2025-03-02T00:00:00Z", Hash: "opB",
			Sender: &AccountRef{Address: "tz1other"},
			Target: &AccountRef{Address: testWallet},
			Amount: 2_500_000,
		},
	}
	transfers := []TokenTransfer{
		{
			ID: 1, Level: 1000, Timestamp: "2025-03-01T00:00:00Z", TransactionHash: "opA",
			From:   &AccountRef{Address: "tz1other"},
			To:     &AccountRef{Address: testWallet},
			Amount: "5000000",
			Token: &Token{
				Contract: &AccountRef{Address: "KT1KusdContract"},
				TokenID:  "0",
				Standard: "fa1.2",
				Metadata: &TokenMetadata{Symbol: "kUSD", Decimals: jsonNumber("6")},
			},
		},
	}

	server := newTestServer(t, txs, transfers)
	defer server.Close()

	events, err := testClient(server.URL).SyncWallet(context.Background(), testWallet,
		"2025-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("SyncWallet: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Sorted ascending: the token transfer precedes the XTZ receipt.
	if events[0].Kind != domain.KindTokenTransfer || events[1].Kind != domain.KindXTZTransfer {
		t.Errorf("expected token then xtz, got %s then %s", events[0].Kind, events[1].Kind)
	}
	if events[0].Asset != "kUSD:KT1KusdContract:0:fa1.2" {
		t.Errorf("unexpected token asset: %s", events[0].Asset)
	}
	if events[0].Quantity != 5 {
		t.Errorf("expected decimals-adjusted quantity 5, got %f", events[0].Quantity)
	}
	if events[1].Quantity != 2.5 {
		t.Errorf("expected 2.5 XTZ, got %f", events[1].Quantity)
	}
}

func TestBuildEvents_Directions(t *testing.T) {
	txs := []Transaction{
		{Level: 1, Timestamp: "2025-03-01T00:00:00Z", Hash: "op-in",
			Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 1_000_000},
		{Level: 2, Timestamp: "2025-03-02T00:00:00Z", Hash: "op-out",
			Sender: &AccountRef{Address: testWallet}, Target: &AccountRef{Address: "tz1other"}, Amount: 1_000_000},
		{Level: 3, Timestamp: "2025-03-03T00:00:00Z", Hash: "op-self",
			Sender: &AccountRef{Address: testWallet}, Target: &AccountRef{Address: testWallet}, Amount: 1_000_000},
	}

	events := BuildEvents(testWallet, txs, nil)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Direction != domain.DirectionIn || events[0].Counterparty != "tz1other" {
		t.Errorf("incoming leg wrong: %s from %s", events[0].Direction, events[0].Counterparty)
	}
	if events[1].Direction != domain.DirectionOut || events[1].Counterparty != "tz1other" {
		t.Errorf("outgoing leg wrong: %s to %s", events[1].Direction, events[1].Counterparty)
	}
	// Sender == target == wallet is treated as outgoing.
	if events[2].Direction != domain.DirectionOut {
		t.Errorf("self-send should be outgoing, got %s", events[2].Direction)
	}
}

func TestBuildEvents_SkipsZeroValueZeroFeeOperations(t *testing.T) {
	txs := []Transaction{
		{Level: 1, Timestamp: "2025-03-01T00:00:00Z", Hash: "op-zero",
			Sender: &AccountRef{Address: testWallet}, Target: &AccountRef{Address: "KT1Contract"}, Amount: 0, BakerFee: 0},
		{Level: 2, Timestamp: "2025-03-02T00:00:00Z", Hash: "op-feeonly",
			Sender: &AccountRef{Address: testWallet}, Target: &AccountRef{Address: "KT1Contract"}, Amount: 0, BakerFee: 1420,
			Parameter: json.RawMessage(`{"entrypoint":"approve"}`)},
	}

	events := BuildEvents(testWallet, txs, nil)
	if len(events) != 1 {
		t.Fatalf("zero-amount zero-fee op should be dropped, got %d events", len(events))
	}
	if events[0].OpHash != "op-feeonly" {
		t.Errorf("expected the fee-only op to survive, got %s", events[0].OpHash)
	}
	if events[0].FeeXTZ != 0.00142 {
		t.Errorf("expected fee 0.00142 XTZ, got %f", events[0].FeeXTZ)
	}
	if events[0].Note != "contract_call" {
		t.Errorf("op with parameter should be noted contract_call, got %s", events[0].Note)
	}
}

func TestBuildEvents_NFTHeuristic(t *testing.T) {
	transfers := []TokenTransfer{
		// FA2, no decimals, amount 1: likely NFT.
		{Level: 1, Timestamp: "2025-03-01T00:00:00Z", TransactionHash: "op1",
			From: &AccountRef{Address: "tz1other"}, To: &AccountRef{Address: testWallet}, Amount: "1",
			Token: &Token{Contract: &AccountRef{Address: "KT1Nft"}, TokenID: "42", Standard: "fa2",
				Metadata: &TokenMetadata{Name: "Cool Art"}}},
		// FA2, zero decimals, amount 3: an edition stack, not a single NFT.
		{Level: 2, Timestamp: "2025-03-02T00:00:00Z", TransactionHash: "op2",
			From: &AccountRef{Address: "tz1other"}, To: &AccountRef{Address: testWallet}, Amount: "3",
			Token: &Token{Contract: &AccountRef{Address: "KT1Nft"}, TokenID: "43", Standard: "fa2",
				Metadata: &TokenMetadata{Decimals: jsonNumber("0")}}},
		// FA1.2 with amount 1: wrong standard.
		{Level: 3, Timestamp: "2025-03-03T00:00:00Z", TransactionHash: "op3",
			From: &AccountRef{Address: "tz1other"}, To: &AccountRef{Address: testWallet}, Amount: "1",
			Token: &Token{Contract: &AccountRef{Address: "KT1Fungible"}, TokenID: "0", Standard: "fa1.2"}},
		// FA2 with 6 decimals: fungible.
		{Level: 4, Timestamp: "2025-03-04T00:00:00Z", TransactionHash: "op4",
			From: &AccountRef{Address: "tz1other"}, To: &AccountRef{Address: testWallet}, Amount: "1",
			Token: &Token{Contract: &AccountRef{Address: "KT1Token"}, TokenID: "0", Standard: "fa2",
				Metadata: &TokenMetadata{Symbol: "USDT", Decimals: jsonNumber("6")}}},
	}

	events := BuildEvents(testWallet, nil, transfers)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if !events[0].LikelyNFT {
		t.Error("FA2 with no decimals moving one unit should be a likely NFT")
	}
	// Name falls back as the symbol.
	if events[0].Asset != "Cool Art:KT1Nft:42:fa2" {
		t.Errorf("unexpected asset id: %s", events[0].Asset)
	}
	if events[1].LikelyNFT {
		t.Error("amount 3 should not be a likely NFT")
	}
	if events[2].LikelyNFT {
		t.Error("FA1.2 should not be a likely NFT")
	}
	if events[3].LikelyNFT {
		t.Error("a 6-decimal FA2 token should not be a likely NFT")
	}
}

func TestBuildEvents_MintAndSymbolFallback(t *testing.T) {
	transfers := []TokenTransfer{
		// No From: minted to the wallet. No metadata at all.
		{Level: 1, Timestamp: "2025-03-01T00:00:00Z", TransactionHash: "op1",
			To: &AccountRef{Address: testWallet}, Amount: "1",
			Token: &Token{Contract: &AccountRef{Address: "KT1Art"}, TokenID: "7", Standard: "fa2"}},
	}

	events := BuildEvents(testWallet, nil, transfers)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if !e.Mint {
		t.Error("transfer with no sender should be a mint")
	}
	if e.Asset != "TOKEN:KT1Art:7:fa2" {
		t.Errorf("expected TOKEN symbol fallback, got %s", e.Asset)
	}
	if e.Counterparty != "" {
		t.Errorf("mint has no counterparty, got %s", e.Counterparty)
	}
}

func TestBuildEvents_DeterministicEventIDs(t *testing.T) {
	txs := []Transaction{
		{Level: 1, Timestamp: "2025-03-01T00:00:00Z", Hash: "opA",
			Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 1_000_000},
	}

	first := BuildEvents(testWallet, txs, nil)
	second := BuildEvents(testWallet, txs, nil)
	if first[0].EventID != second[0].EventID {
		t.Errorf("event IDs must be deterministic: %s vs %s", first[0].EventID, second[0].EventID)
	}
	if len(first[0].EventID) != 64 {
		t.Errorf("expected 64-char id, got %d chars", len(first[0].EventID))
	}
}

func TestBuildEvents_EventIDsStableAcrossFetchWindows(t *testing.T) {
	// Incremental sync re-fetches from the newest stored timestamp, so the
	// same transfer arrives again at a different position in the batch. Its
	// ID must not depend on that position or the dedupe filter misses it.
	txA := Transaction{ID: 101, Level: 1, Timestamp: "2025-03-01T00:00:00Z", Hash: "opA",
		Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 1_000_000}
	txB := Transaction{ID: 102, Level: 2, Timestamp: "2025-03-02T00:00:00Z", Hash: "opB",
		Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 2_000_000}
	trC := TokenTransfer{ID: 201, Level: 3, Timestamp: "2025-03-03T00:00:00Z", TransactionHash: "opC",
		From: &AccountRef{Address: "tz1other"}, To: &AccountRef{Address: testWallet}, Amount: "1",
		Token: &Token{Contract: &AccountRef{Address: "KT1Token"}, TokenID: "0", Standard: "fa1.2"}}

	full := BuildEvents(testWallet, []Transaction{txA, txB}, []TokenTransfer{trC})
	narrow := BuildEvents(testWallet, []Transaction{txB}, []TokenTransfer{trC})

	if full[1].EventID != narrow[0].EventID {
		t.Errorf("transaction ID changed across windows: %s vs %s", full[1].EventID, narrow[0].EventID)
	}
	if full[2].EventID != narrow[1].EventID {
		t.Errorf("token transfer ID changed across windows: %s vs %s", full[2].EventID, narrow[1].EventID)
	}
}

func TestBuildEvents_RowIDDistinguishesInternalLegs(t *testing.T) {
	// A batched operation can move XTZ to the wallet twice under one hash
	// and level; only the indexer row ID tells the legs apart.
	legs := []Transaction{
		{ID: 301, Level: 5, Timestamp: "2025-03-05T00:00:00Z", Hash: "opBatch",
			Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 1_000_000},
		{ID: 302, Level: 5, Timestamp: "2025-03-05T00:00:00Z", Hash: "opBatch",
			Sender: &AccountRef{Address: "tz1other"}, Target: &AccountRef{Address: testWallet}, Amount: 3_000_000},
	}

	events := BuildEvents(testWallet, legs, nil)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventID == events[1].EventID {
		t.Error("two legs of one operation must get distinct IDs")
	}
}

func TestClient_ErrorOnHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Transactions(context.Background(), testWallet,
		"2025-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
