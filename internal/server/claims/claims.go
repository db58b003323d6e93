// Package claims holds the identity claim bag carried inside access tokens
// and the contract of whoever supplies it.
//
// A Set is an ordered list of (type, value) pairs. The same type may occur
// more than once (several roles). Equality ignores order.
package claims

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// Identity claim types filled by the default supplier.
const (
	Role          = "role"
	Username      = "username"
	Email         = "email"
	SecurityStamp = "security_stamp"
)

// Token-management claims. They are owned by the signer and never travel in
// a Set.
const (
	JTI       = "jti"
	Subject   = "sub"
	Issuer    = "iss"
	Audience  = "aud"
	ExpiresAt = "exp"
	IssuedAt  = "iat"
	NotBefore = "nbf"
)

var registered = []string{JTI, Subject, Issuer, Audience, ExpiresAt, IssuedAt, NotBefore}

// IsRegistered reports whether typ is a token-management claim.
func IsRegistered(typ string) bool {
	return slices.Contains(registered, typ)
}

// Claim is one identity attribute.
type Claim struct {
	Type  string
	Value string
}

func (c Claim) String() string { return c.Type + "=" + c.Value }

// Set is an ordered claim bag.
type Set []Claim

// Supplier returns the identity claims to embed for a principal.
type Supplier interface {
	ClaimsFor(ctx context.Context, principalID int64) (Set, error)
}

// New builds a Set from alternating type/value strings. It panics on an odd
// count, so it is meant for literals.
func New(pairs ...string) Set {
	if len(pairs)%2 != 0 {
		panic("claims.New: odd number of arguments")
	}
	s := make(Set, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		s = append(s, Claim{Type: pairs[i], Value: pairs[i+1]})
	}
	return s
}

// Add returns s with one more claim appended.
func (s Set) Add(typ, value string) Set {
	return append(s, Claim{Type: typ, Value: value})
}

// Get returns the first value of typ.
func (s Set) Get(typ string) (string, bool) {
	for _, c := range s {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// Values returns every value of typ in order.
func (s Set) Values(typ string) []string {
	var out []string
	for _, c := range s {
		if c.Type == typ {
			out = append(out, c.Value)
		}
	}
	return out
}

// Without returns a copy of s minus every claim whose type is listed.
func (s Set) Without(types ...string) Set {
	out := make(Set, 0, len(s))
	for _, c := range s {
		if !slices.Contains(types, c.Type) {
			out = append(out, c)
		}
	}
	return out
}

// Identity drops token-management claims.
func (s Set) Identity() Set {
	return s.Without(registered...)
}

// Sorted returns a copy ordered by type, then value.
func (s Set) Sorted() Set {
	out := slices.Clone(s)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Equal compares two sets as multisets.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	return slices.Equal(s.Sorted(), o.Sorted())
}

// Map renders s as JWT payload fields: a single occurrence becomes a string,
// repeated types become a string array in insertion order.
func (s Set) Map() map[string]any {
	m := make(map[string]any, len(s))
	for _, c := range s {
		switch v := m[c.Type].(type) {
		case nil:
			m[c.Type] = c.Value
		case string:
			m[c.Type] = []string{v, c.Value}
		case []string:
			m[c.Type] = append(v, c.Value)
		}
	}
	return m
}

// FromMap is the inverse of Map for decoded JWT payloads. Registered claims
// are skipped; keys are visited in sorted order so the result is stable.
// Non-string scalars are formatted with %v.
func FromMap(m map[string]any) Set {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !IsRegistered(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	s := make(Set, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			s = s.Add(k, v)
		case []string:
			for _, item := range v {
				s = s.Add(k, item)
			}
		case []any:
			for _, item := range v {
				s = s.Add(k, fmt.Sprint(item))
			}
		case nil:
		default:
			s = s.Add(k, fmt.Sprint(v))
		}
	}
	return slices.Clip(s)
}
