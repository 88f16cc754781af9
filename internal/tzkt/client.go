package tzkt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tezos-tax-lab/internal/domain"
	"tezos-tax-lab/internal/idhash"
)

// DefaultBaseURL is the public TzKT API.
const DefaultBaseURL = "https://api.tzkt.io/v1"

const (
	defaultPageLimit = 1000
	// politeDelay spaces paginated requests so the public indexer isn't
	// hammered.
	politeDelay = 150 * time.Millisecond

	userAgent = "tezos-tax-lab/1.0"
)

// Client is a read-only TzKT REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageLimit  int
	delay      time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageLimit overrides the pagination page size.
func WithPageLimit(limit int) ClientOption {
	return func(c *Client) { c.pageLimit = limit }
}

// WithDelay overrides the inter-page delay. Zero disables it (tests).
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.delay = d }
}

// NewClient creates a TzKT client for the given base URL. An empty base
// URL uses the public API.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageLimit:  defaultPageLimit,
		delay:      politeDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transactions fetches all XTZ-moving transactions involving an address
// within [from, to) as ISO-8601 timestamps, ascending. This includes plain
// transfers and contract calls that move tez.
func (c *Client) Transactions(ctx context.Context, address, from, to string) ([]Transaction, error) {
	params := url.Values{}
	params.Set("anyof.sender.target", address)
	params.Set("timestamp.ge", from)
	params.Set("timestamp.lt", to)
	params.Set("sort.asc", "timestamp")

	var out []Transaction
	err := c.paginate(ctx, "/operations/transactions", params, func(data []byte) (int, error) {
		var page []Transaction
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch transactions for %s: %w", address, err)
	}
	return out, nil
}

// TokenTransfers fetches all FA1.2/FA2 token transfers involving an
// address within [from, to), ascending.
func (c *Client) TokenTransfers(ctx context.Context, address, from, to string) ([]TokenTransfer, error) {
	params := url.Values{}
	params.Set("anyof.from.to", address)
	params.Set("timestamp.ge", from)
	params.Set("timestamp.lt", to)
	params.Set("sort.asc", "timestamp")

	var out []TokenTransfer
	err := c.paginate(ctx, "/tokens/transfers", params, func(data []byte) (int, error) {
		var page []TokenTransfer
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch token transfers for %s: %w", address, err)
	}
	return out, nil
}

// SyncWallet fetches both operation streams for a wallet and builds its
// transfer events, sorted ascending by timestamp.
func (c *Client) SyncWallet(ctx context.Context, address, from, to string) ([]*domain.TransferEvent, error) {
	txs, err := c.Transactions(ctx, address, from, to)
	if err != nil {
		return nil, err
	}
	transfers, err := c.TokenTransfers(ctx, address, from, to)
	if err != nil {
		return nil, err
	}
	return BuildEvents(address, txs, transfers), nil
}

// paginate walks an endpoint with limit/offset pages until a short page,
// handing each raw page body to the accumulator.
func (c *Client) paginate(ctx context.Context, path string, params url.Values, accumulate func([]byte) (int, error)) error {
	offset := 0
	for {
		page := url.Values{}
		for k, v := range params {
			page[k] = v
		}
		page.Set("limit", strconv.Itoa(c.pageLimit))
		page.Set("offset", strconv.Itoa(offset))

		data, err := c.get(ctx, path+"?"+page.Encode())
		if err != nil {
			return err
		}

		n, err := accumulate(data)
		if err != nil {
			return fmt.Errorf("decode page at offset %d: %w", offset, err)
		}
		if n < c.pageLimit {
			return nil
		}
		offset += c.pageLimit

		if c.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}
}

func (c *Client) get(ctx context.Context, pathAndQuery string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pathAndQuery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", pathAndQuery, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// BuildEvents converts raw TzKT rows into transfer events for one wallet.
// Zero-value XTZ operations with no fee are dropped; everything else is
// kept and left for the classifier.
func BuildEvents(wallet string, txs []Transaction, transfers []TokenTransfer) []*domain.TransferEvent {
	var events []*domain.TransferEvent

	for _, tx := range txs {
		if tx.Timestamp == "" {
			continue
		}
		sender := accountAddress(tx.Sender)
		target := accountAddress(tx.Target)

		amountXTZ := float64(tx.Amount) / 1_000_000.0
		feeXTZ := float64(tx.BakerFee) / 1_000_000.0
		if amountXTZ == 0 && feeXTZ == 0 {
			continue
		}

		dir := domain.DirectionOut
		if target == wallet && sender != wallet {
			dir = domain.DirectionIn
		}
		counterparty := target
		if dir == domain.DirectionIn {
			counterparty = sender
		}

		note := "transfer"
		if len(tx.Parameter) > 0 {
			note = "contract_call"
		}

		events = append(events, &domain.TransferEvent{
			EventID:      idhash.ComputeEventID(wallet, tx.Hash, domain.XTZ, dir, tx.Level, tx.ID),
			Wallet:       wallet,
			Timestamp:    tx.Timestamp,
			Level:        tx.Level,
			OpHash:       tx.Hash,
			Kind:         domain.KindXTZTransfer,
			Direction:    dir,
			Counterparty: counterparty,
			Asset:        domain.XTZ,
			Quantity:     clamp(amountXTZ),
			FeeXTZ:       clamp(feeXTZ),
			Note:         note,
		})
	}

	for _, tr := range transfers {
		if tr.Timestamp == "" {
			continue
		}
		from := accountAddress(tr.From)
		to := accountAddress(tr.To)

		dir := domain.DirectionOut
		if to == wallet {
			dir = domain.DirectionIn
		}
		counterparty := to
		if dir == domain.DirectionIn {
			counterparty = from
		}

		asset, qty, likelyNFT := tokenAsset(tr)

		events = append(events, &domain.TransferEvent{
			EventID:      idhash.ComputeEventID(wallet, tr.TransactionHash, asset, dir, tr.Level, tr.ID),
			Wallet:       wallet,
			Timestamp:    tr.Timestamp,
			Level:        tr.Level,
			OpHash:       tr.TransactionHash,
			Kind:         domain.KindTokenTransfer,
			Direction:    dir,
			Counterparty: counterparty,
			Asset:        asset,
			Quantity:     clamp(qty),
			Mint:         dir == domain.DirectionIn && from == "",
			LikelyNFT:    likelyNFT,
			Note:         "token_transfer",
		})
	}

	sortEvents(events)
	return events
}

// tokenAsset derives the asset identifier, decimals-adjusted quantity and
// NFT hint for a token transfer. The identifier is
// SYMBOL:contract:tokenId:standard with name then "TOKEN" as symbol
// fallbacks. An FA2 token with zero or absent decimals moving exactly one
// raw unit is treated as a likely NFT.
func tokenAsset(tr TokenTransfer) (asset string, qty float64, likelyNFT bool) {
	var contract, standard, tokenID, symbol string
	var decimals *json.Number

	if tr.Token != nil {
		contract = accountAddress(tr.Token.Contract)
		standard = tr.Token.Standard
		tokenID = tr.Token.TokenID
		if tr.Token.Metadata != nil {
			symbol = tr.Token.Metadata.Symbol
			if symbol == "" {
				symbol = tr.Token.Metadata.Name
			}
			decimals = tr.Token.Metadata.Decimals
		}
	}
	if symbol == "" {
		symbol = "TOKEN"
	}
	asset = fmt.Sprintf("%s:%s:%s:%s", symbol, contract, tokenID, standard)

	raw, err := strconv.ParseFloat(tr.Amount, 64)
	if err != nil {
		raw = 0
	}

	qty = raw
	dec := -1
	if decimals != nil {
		if d, err := strconv.Atoi(decimals.String()); err == nil {
			dec = d
			if d > 0 {
				qty = raw / math.Pow10(d)
			}
		}
	}

	likelyNFT = strings.EqualFold(standard, "fa2") && (dec <= 0) && raw == 1
	return asset, qty, likelyNFT
}

func accountAddress(a *AccountRef) string {
	if a == nil {
		return ""
	}
	return a.Address
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// sortEvents orders by timestamp then level, keeping the interleaved XTZ
// and token streams stable.
func sortEvents(events []*domain.TransferEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Level < events[j].Level
	})
}
