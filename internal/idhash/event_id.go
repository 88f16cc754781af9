package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"tezos-tax-lab/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(wallet|op_hash|asset|direction|level|row_id)
// Returns hex-encoded hash (64 characters). The row ID is the indexer's
// global row identifier for the transfer; it disambiguates multiple legs
// of the same asset and direction within one operation and, unlike a
// fetch-batch position, does not change when the same transfer is
// re-fetched in a narrower window.
func ComputeEventID(
	wallet string,
	opHash string,
	asset string,
	direction domain.Direction,
	level int64,
	rowID int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		wallet,
		opHash,
		asset,
		string(direction),
		level,
		rowID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeReportID computes a deterministic report_id.
// Formula: SHA256(wallet|jurisdiction|year)
func ComputeReportID(wallet string, jurisdiction domain.Jurisdiction, year int) string {
	data := fmt.Sprintf("%s|%s|%d", wallet, string(jurisdiction), year)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
