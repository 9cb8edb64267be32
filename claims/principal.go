package claims

import (
	"fmt"
	"strconv"
	"strings"
)

// Principal is an already-authenticated caller whose claims can be looked up by type.
type Principal interface {
	FindFirst(claimType string) (string, bool)
}

// Absent reports whether p is nil, including a nil MapPrincipal held in the interface.
func Absent(p Principal) bool {
	switch v := p.(type) {
	case nil:
		return true
	case MapPrincipal:
		return v == nil
	case *MapPrincipal:
		return v == nil || *v == nil
	}
	return false
}

// MapPrincipal is a Principal backed by a plain claim map.
type MapPrincipal map[string]string

// FindFirst implements [Principal].
func (m MapPrincipal) FindFirst(claimType string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[claimType]
	return v, ok
}

// ConversionError reports a renewal claim whose value is present but not an integer.
type ConversionError struct {
	ClaimType string
	Value     string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("claim %q: value %q is not an integer", e.ClaimType, e.Value)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IdentityFromPrincipal extracts the identity fields carried by p's existing claims.
//
// Absent claims resolve to their sentinel. A numeric claim that is present but
// unparsable is an error; it is never coerced to a sentinel.
func IdentityFromPrincipal(p Principal) (Identity, error) {
	id := UnsetIdentity()
	if Absent(p) {
		return id, nil
	}

	if email, ok := p.FindFirst(TypeEmail); ok {
		id.Email = email
	}

	var err error
	if id.PrimaryID, err = numericClaim(p, TypePrimarySID); err != nil {
		return Identity{}, err
	}
	if id.PrimaryGroupID, err = numericClaim(p, TypePrimaryGroupSID); err != nil {
		return Identity{}, err
	}
	if id.RoleID, err = numericClaim(p, TypeRole); err != nil {
		return Identity{}, err
	}

	return id, nil
}

func numericClaim(p Principal, claimType string) (int64, error) {
	raw, ok := p.FindFirst(claimType)
	if !ok {
		return Unset, nil
	}
	// Surrounding whitespace is tolerated; anything else must be a base-10 int64.
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &ConversionError{ClaimType: claimType, Value: raw, Err: err}
	}
	return n, nil
}
