package claims

import (
	"strconv"
	"time"
)

// Claim type keys written into every issued token.
const (
	TypeEmail           = "email"
	TypePrimarySID      = "primarySid"
	TypePrimaryGroupSID = "primaryGroupSid"
	TypeRole            = "role"
	TypeJTI             = "jti"
	TypeIssuedAt        = "iat"
)

// Unset is the numeric sentinel for an identity field that could not be resolved.
const Unset int64 = -1

// ValueType tells the signer how a claim value is represented in the token payload.
type ValueType uint8

const (
	// String values are written as JSON strings.
	String ValueType = iota
	// Integer64 values are written as JSON numbers; the textual value must parse as int64.
	Integer64
)

// Claim is a single named attribute. Value is always the textual form.
type Claim struct {
	Type      string
	Value     string
	ValueType ValueType
}

// Identity is the record a credential verifier resolves a caller to.
//
// Numeric fields use [Unset] when unknown; Email uses the empty string.
type Identity struct {
	Email          string
	PrimaryID      int64
	PrimaryGroupID int64
	RoleID         int64
}

// UnsetIdentity returns an identity with every field at its sentinel.
func UnsetIdentity() Identity {
	return Identity{PrimaryID: Unset, PrimaryGroupID: Unset, RoleID: Unset}
}

// Set is an ordered, immutable claim sequence. The zero value is empty.
type Set struct {
	claims []Claim
}

// NewSet copies the given claims into a new Set.
func NewSet(claims ...Claim) Set {
	out := make([]Claim, len(claims))
	copy(out, claims)
	return Set{claims: out}
}

// All returns a copy of the claims in issuance order.
func (s Set) All() []Claim {
	out := make([]Claim, len(s.claims))
	copy(out, s.claims)
	return out
}

// Len reports the number of claims.
func (s Set) Len() int {
	return len(s.claims)
}

// Value returns the first value recorded for claimType.
func (s Set) Value(claimType string) (string, bool) {
	for _, c := range s.claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// FromIdentity builds the canonical claim set for id. Field values pass through
// unvalidated: sentinels are serialized as "-1" and an unset email as "".
func FromIdentity(id Identity, jti string, issuedAt time.Time) Set {
	return Set{claims: []Claim{
		{Type: TypeEmail, Value: id.Email},
		{Type: TypePrimarySID, Value: strconv.FormatInt(id.PrimaryID, 10)},
		{Type: TypePrimaryGroupSID, Value: strconv.FormatInt(id.PrimaryGroupID, 10)},
		{Type: TypeRole, Value: strconv.FormatInt(id.RoleID, 10)},
		{Type: TypeJTI, Value: jti},
		{Type: TypeIssuedAt, Value: strconv.FormatInt(issuedAt.Unix(), 10), ValueType: Integer64},
	}}
}
