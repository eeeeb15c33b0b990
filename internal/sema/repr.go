package sema

// Repr is the on-stack representation type a compiler-internal value is
// classified as: one of the numeric encodings, a guarded/unguarded asset
// lookup result, or one of the opaque byte-string kinds.
type Repr int

const (
	ReprUnknown Repr = iota
	ReprCSN               // minimal scriptnum encoding: small ints, booleans, counters
	ReprU32LE             // 4-byte little-endian: block heights / timestamps
	ReprU64LE             // 8-byte little-endian: asset amounts
	ReprBytes             // opaque byte string (bytes, bytes20, bytes32, scriptPubKey)
	ReprPubkey            // 32/33-byte public key
	ReprSignature         // Schnorr/ECDSA signature
	ReprSentinel          // result of an asset lookup that may be -1 (not found)
	ReprAssetIDSeed       // a bytes32 constructor param decomposed into (txid, gidx)
)

func (r Repr) String() string {
	switch r {
	case ReprCSN:
		return "csn"
	case ReprU32LE:
		return "u32le"
	case ReprU64LE:
		return "u64le"
	case ReprBytes:
		return "bytes"
	case ReprPubkey:
		return "pubkey"
	case ReprSignature:
		return "signature"
	case ReprSentinel:
		return "sentinel"
	case ReprAssetIDSeed:
		return "asset-id-seed"
	default:
		return "unknown"
	}
}

// ReprOfBaseType maps a declared base type name to its default
// representation. Arrays use the element's base type representation.
func ReprOfBaseType(base string) Repr {
	switch base {
	case "pubkey":
		return ReprPubkey
	case "signature":
		return ReprSignature
	case "bytes", "bytes20", "bytes32":
		return ReprBytes
	case "int", "bool":
		return ReprCSN
	case "asset":
		return ReprU64LE
	default:
		return ReprUnknown
	}
}

// Convertible reports whether an explicit conversion from `from` to `to`
// exists per the representation-transition table. Equal reprs are always
// trivially convertible (a no-op). Sentinel never converts except through
// a guard, which is handled separately by the caller (sentinel is never
// "explicitly" convertible here).
func Convertible(from, to Repr) bool {
	if from == to {
		return true
	}
	switch from {
	case ReprCSN:
		return to == ReprU64LE
	case ReprU32LE:
		return to == ReprU64LE
	case ReprU64LE:
		return to == ReprCSN
	}
	return false
}
