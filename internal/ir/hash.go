package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// The version suffix allows migrating the algorithm without silent collisions.
const (
	DomainSchema = "vquery/schema/v1"
	DomainPage   = "vquery/page/v1"
	DomainUnit   = "vquery/unit/v1"
	DomainScalar = "vquery/scalar/v1"
	DomainShape  = "vquery/shape/v1"
	DomainPlan   = "vquery/plan/v1"
)

// Digest is a hex-encoded SHA-256 digest.
type Digest string

// String implements fmt.Stringer.
func (d Digest) String() string { return string(d) }

// Short returns the first 12 hex characters, for logs.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + part[0] + 0x00 + part[1] ...)
// The null separators prevent boundary ambiguity between domain and parts.
func HashWithDomain(domain string, parts ...[]byte) Digest {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// HashCanonical canonically marshals v and hashes it under domain.
func HashCanonical(domain string, v any) (Digest, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, canonical), nil
}

// MustHashCanonical is like HashCanonical but panics on error.
// Use only in tests or when v is known to be valid.
func MustHashCanonical(domain string, v any) Digest {
	d, err := HashCanonical(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}
