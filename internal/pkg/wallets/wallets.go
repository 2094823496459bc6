package wallets

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// PendingPrefix encodes a named-but-unresolved beneficiary in a wallet
// column. It exists only at the storage/API boundary; in-process code works
// with Beneficiary values, never by re-parsing strings.
const PendingPrefix = "pending:"

// AIBeneficiary is the reserved wallet constant for AI-attributed splits.
// It is not a persona and never resolves to one.
const AIBeneficiary = "AI"

// Chain identifiers.
const (
	ChainSui    = "sui"
	ChainStacks = "stacks"
)

// SUI addresses are 0x-prefixed 32-byte hex. Stacks mainnet addresses are
// c32check strings starting SP/SM (testnet ST/SN).
var (
	suiRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	stacksRe = regexp.MustCompile(`^S[PMTN][0-9A-HJKMNP-TV-Z]{28,40}$`)
)

// IsValidAddress reports whether s is a syntactically valid SUI or Stacks address.
func IsValidAddress(s string) bool {
	return suiRe.MatchString(s) || stacksRe.MatchString(s)
}

// ChainOf returns the chain of a concrete address, or "" when unrecognized.
func ChainOf(s string) string {
	switch {
	case suiRe.MatchString(s):
		return ChainSui
	case stacksRe.MatchString(s):
		return ChainStacks
	default:
		return ""
	}
}

// GenerateAddress returns a fresh implicit SUI-format address for a
// placeholder persona.
func GenerateAddress() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// BeneficiaryKind discriminates the Beneficiary sum type.
type BeneficiaryKind int

const (
	// KindResolved is a concrete on-chain address.
	KindResolved BeneficiaryKind = iota
	// KindNamed is a collaborator named but not yet materialized.
	KindNamed
	// KindAI is the reserved AI attribution constant.
	KindAI
)

// Beneficiary replaces the string-prefix encoding of pending state with a
// closed type. Decode/Encode are the only places the prefix is interpreted.
type Beneficiary struct {
	Kind    BeneficiaryKind
	Address string // KindResolved
	Name    string // KindNamed
}

// Resolved builds a concrete-address beneficiary.
func Resolved(address string) Beneficiary {
	return Beneficiary{Kind: KindResolved, Address: address}
}

// Named builds a pending beneficiary for a collaborator name.
func Named(name string) Beneficiary {
	return Beneficiary{Kind: KindNamed, Name: name}
}

// Decode parses a stored wallet string into a Beneficiary.
func Decode(s string) Beneficiary {
	if s == AIBeneficiary {
		return Beneficiary{Kind: KindAI}
	}
	if strings.HasPrefix(s, PendingPrefix) {
		return Named(strings.TrimPrefix(s, PendingPrefix))
	}
	return Resolved(s)
}

// Encode renders a Beneficiary into its storage form.
func (b Beneficiary) Encode() string {
	switch b.Kind {
	case KindNamed:
		return PendingPrefix + b.Name
	case KindAI:
		return AIBeneficiary
	default:
		return b.Address
	}
}

// IsPendingMarker reports whether a stored wallet string is a pending marker.
func IsPendingMarker(s string) bool {
	return strings.HasPrefix(s, PendingPrefix)
}
