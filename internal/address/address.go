// Package address validates Tezos base58check addresses and keys.
package address

import (
	"bytes"
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Base58check payload prefixes.
var (
	prefixTz1  = []byte{6, 161, 159}     // ed25519 public key hash
	prefixTz2  = []byte{6, 161, 161}     // secp256k1 public key hash
	prefixTz3  = []byte{6, 161, 164}     // p256 public key hash
	prefixKT1  = []byte{2, 90, 121}      // originated contract
	prefixEdpk = []byte{13, 15, 37, 217} // ed25519 public key
)

const (
	hashLen   = 20 // public key hash length
	pubKeyLen = 32 // ed25519 public key length
)

// decodeCheck decodes a base58check string and verifies its 4-byte
// double-SHA256 checksum. Returns the payload including the prefix.
func decodeCheck(s string) ([]byte, bool) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) < 5 {
		return nil, false
	}

	payload, check := raw[:len(raw)-4], raw[len(raw)-4:]
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	if !bytes.Equal(check, h2[:4]) {
		return nil, false
	}
	return payload, true
}

// hasPrefixedLen reports whether payload carries the given prefix followed
// by exactly n bytes.
func hasPrefixedLen(payload, prefix []byte, n int) bool {
	return len(payload) == len(prefix)+n && bytes.HasPrefix(payload, prefix)
}

// IsValid reports whether s is a well-formed Tezos account or contract
// address (tz1/tz2/tz3/KT1) with a valid checksum.
func IsValid(s string) bool {
	payload, ok := decodeCheck(s)
	if !ok {
		return false
	}

	for _, prefix := range [][]byte{prefixTz1, prefixTz2, prefixTz3, prefixKT1} {
		if hasPrefixedLen(payload, prefix, hashLen) {
			return true
		}
	}
	return false
}

// IsContract reports whether s is a valid originated contract (KT1) address.
func IsContract(s string) bool {
	payload, ok := decodeCheck(s)
	return ok && hasPrefixedLen(payload, prefixKT1, hashLen)
}

// IsValidPublicKey reports whether s is a well-formed ed25519 public key
// (edpk...) whose 32 bytes decode to a canonical curve point.
func IsValidPublicKey(s string) bool {
	payload, ok := decodeCheck(s)
	if !ok || !hasPrefixedLen(payload, prefixEdpk, pubKeyLen) {
		return false
	}

	_, err := new(edwards25519.Point).SetBytes(payload[len(prefixEdpk):])
	return err == nil
}
