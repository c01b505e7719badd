// Package ir provides the canonical value types and hashing primitives for vquery.
//
// Every byte that feeds a commitment, a circuit shape digest, or a proof transcript
// is produced here. All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - NO float types anywhere - use int64 for numbers
//   - NO null inside committed data - canonical JSON rejects it
//   - Canonical encoding is RFC 8785 JSON; object keys sorted by UTF-16 code units
//   - Digests are SHA-256 with a versioned domain prefix and a 0x00 separator
package ir
