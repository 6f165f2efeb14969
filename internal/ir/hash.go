package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for audit event hashing.
// Version suffix enables future algorithm migration.
const DomainEvent = "tokenstream/event/v1"

// GenesisHash is the prev_hash of the first event in a log.
const GenesisHash = ""

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventHash computes the chained hash of an audit event.
// Each hash commits to the previous one, so rewriting any earlier event
// invalidates every later hash.
func EventHash(prevHash string, e Event) (string, error) {
	obj := e.Fields()
	obj["id"] = e.ID
	obj["prev_hash"] = prevHash

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventHash is like EventHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventHash(prevHash string, e Event) string {
	h, err := EventHash(prevHash, e)
	if err != nil {
		panic(err)
	}
	return h
}
