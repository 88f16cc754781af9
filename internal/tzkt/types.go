// Package tzkt fetches a wallet's on-chain activity from the TzKT indexer
// and converts it into transfer events.
package tzkt

import "encoding/json"

// AccountRef is TzKT's compact account reference.
type AccountRef struct {
	Address string `json:"address"`
	Alias   string `json:"alias,omitempty"`
}

// Transaction is one row of /v1/operations/transactions. Amounts and fees
// are in mutez.
type Transaction struct {
	ID        int64           `json:"id"`
	Level     int64           `json:"level"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
	Sender    *AccountRef     `json:"sender"`
	Target    *AccountRef     `json:"target"`
	Amount    int64           `json:"amount"`
	BakerFee  int64           `json:"bakerFee"`
	Parameter json.RawMessage `json:"parameter,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// TokenMetadata is the subset of token metadata the event builder needs.
// Decimals is a pointer because many FA2 contracts omit it entirely, and
// that absence participates in the NFT heuristic.
type TokenMetadata struct {
	Symbol   string       `json:"symbol,omitempty"`
	Name     string       `json:"name,omitempty"`
	Decimals *json.Number `json:"decimals,omitempty"`
}

// Token describes the asset side of a token transfer.
type Token struct {
	Contract *AccountRef    `json:"contract"`
	TokenID  string         `json:"tokenId"`
	Standard string         `json:"standard"`
	Metadata *TokenMetadata `json:"metadata,omitempty"`
}

// TokenTransfer is one row of /v1/tokens/transfers. Amount is a decimal
// string in the token's raw units. A missing From means the token was
// minted to the recipient.
type TokenTransfer struct {
	ID              int64       `json:"id"`
	Level           int64       `json:"level"`
	Timestamp       string      `json:"timestamp"`
	TransactionHash string      `json:"transactionHash"`
	From            *AccountRef `json:"from"`
	To              *AccountRef `json:"to"`
	Token           *Token      `json:"token"`
	Amount          string      `json:"amount"`
}
