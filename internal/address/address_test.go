package address

import (
	"crypto/sha256"
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// encodeCheck builds a base58check string from a prefix and payload, the
// inverse of decodeCheck.
func encodeCheck(prefix, payload []byte) string {
	data := append(append([]byte{}, prefix...), payload...)
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return base58.Encode(append(data, h2[:4]...))
}

func testHash(fill byte) []byte {
	h := make([]byte, hashLen)
	for i := range h {
		h[i] = fill
	}
	return h
}

func TestIsValid_AcceptsAllAccountPrefixes(t *testing.T) {
	for name, prefix := range map[string][]byte{
		"tz1": prefixTz1,
		"tz2": prefixTz2,
		"tz3": prefixTz3,
		"KT1": prefixKT1,
	} {
		addr := encodeCheck(prefix, testHash(0x42))
		if !IsValid(addr) {
			t.Errorf("%s address %s should be valid", name, addr)
		}
	}
}

func TestIsValid_RejectsBadChecksum(t *testing.T) {
	addr := encodeCheck(prefixTz1, testHash(0x42))

	// Flip the last character to corrupt the checksum.
	last := addr[len(addr)-1]
	replacement := byte('1')
	if last == '1' {
		replacement = '2'
	}
	tampered := addr[:len(addr)-1] + string(replacement)

	if IsValid(tampered) {
		t.Errorf("tampered address %s should be invalid", tampered)
	}
}

func TestIsValid_RejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"tz1",
		"not-base58-0OIl",
		"tz1hello world",
		encodeCheck(prefixEdpk, make([]byte, pubKeyLen)), // key, not address
		encodeCheck(prefixTz1, testHash(0x42)[:hashLen-1]), // short payload
	}
	for _, s := range cases {
		if IsValid(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsContract(t *testing.T) {
	kt := encodeCheck(prefixKT1, testHash(0x01))
	tz := encodeCheck(prefixTz1, testHash(0x01))

	if !IsContract(kt) {
		t.Errorf("KT1 address %s should be a contract", kt)
	}
	if IsContract(tz) {
		t.Errorf("tz1 address %s is not a contract", tz)
	}
	if !IsValid(kt) {
		t.Errorf("contract address %s should also be a valid address", kt)
	}
}

func TestIsValidPublicKey(t *testing.T) {
	// A canonical curve point: the ed25519 generator.
	canonical := edwards25519.NewGeneratorPoint().Bytes()
	key := encodeCheck(prefixEdpk, canonical)
	if !IsValidPublicKey(key) {
		t.Errorf("generator-point key %s should be valid", key)
	}

	// 32 bytes of 0xFF is not a canonical point encoding.
	bad := make([]byte, pubKeyLen)
	for i := range bad {
		bad[i] = 0xFF
	}
	if IsValidPublicKey(encodeCheck(prefixEdpk, bad)) {
		t.Error("non-canonical point should be rejected")
	}

	// Address prefixes never validate as keys.
	if IsValidPublicKey(encodeCheck(prefixTz1, testHash(0x42))) {
		t.Error("tz1 address should not validate as a public key")
	}
}
