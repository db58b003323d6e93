// Package auth produces and verifies access tokens: compact JWS strings
// carrying jti, sub, iss, aud, exp, iat and the identity claim bag.
//
// A Signer is built once from a base configuration and holds two immutable
// parsers. The strict parser enforces expiry (with clock-skew leeway). The
// lenient parser checks signature, algorithm, issuer and audience but
// ignores expiry; it exists for the refresh path, where the presented access
// token has usually just expired.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/claims"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MaxClockSkew bounds the configurable leeway.
const MaxClockSkew = 5 * time.Minute

// Params is the base configuration both validation profiles derive from.
type Params struct {
	Algorithm Algorithm
	SignKey   any
	VerifyKey any
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// AccessToken is a freshly signed token plus the values the caller needs to
// bind a refresh token to it.
type AccessToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Verified is the trusted content of a token whose signature checked out.
type Verified struct {
	JTI       string
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    claims.Set
}

// PrincipalID parses the subject as a decimal principal id. Only the
// canonical form is accepted, so "+25" and "025" are rejected.
func (v *Verified) PrincipalID() (int64, error) {
	if v.Subject == "" {
		return 0, common.ErrInvalidPrincipal
	}
	id, err := strconv.ParseInt(v.Subject, 10, 64)
	if err != nil || strconv.FormatInt(id, 10) != v.Subject {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidPrincipal, v.Subject)
	}
	return id, nil
}

type Option func(*Signer)

// WithClock replaces the wall clock used by strict validation.
func WithClock(c clockwork.Clock) Option {
	return func(s *Signer) { s.clock = c }
}

// Signer signs and validates access tokens.
type Signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	clock     clockwork.Clock

	strict  *jwt.Parser
	lenient *jwt.Parser
}

// NewSigner checks p and prepares both validation profiles.
func NewSigner(p Params, opts ...Option) (*Signer, error) {
	method, err := p.Algorithm.method()
	if err != nil {
		return nil, err
	}
	if p.ClockSkew < 0 || p.ClockSkew > MaxClockSkew {
		return nil, fmt.Errorf("clock skew %s out of range [0, %s]", p.ClockSkew, MaxClockSkew)
	}

	verifyKey := p.VerifyKey
	if p.Algorithm.symmetric() {
		if key, ok := p.SignKey.([]byte); !ok || len(key) == 0 {
			return nil, fmt.Errorf("%s requires a non-empty []byte secret", p.Algorithm)
		}
		verifyKey = p.SignKey
	}
	if verifyKey == nil {
		return nil, fmt.Errorf("%s requires a verification key", p.Algorithm)
	}

	s := &Signer{
		method:    method,
		signKey:   p.SignKey,
		verifyKey: verifyKey,
		issuer:    p.Issuer,
		audience:  p.Audience,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	base := []jwt.ParserOption{jwt.WithValidMethods([]string{method.Alg()})}

	strict := append(slices.Clone(base),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.ClockSkew),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if p.Issuer != "" {
		strict = append(strict, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		strict = append(strict, jwt.WithAudience(p.Audience))
	}
	s.strict = jwt.NewParser(strict...)

	// issuer and audience are checked by hand after parsing, see ValidateLenient
	s.lenient = jwt.NewParser(append(slices.Clone(base), jwt.WithoutClaimsValidation())...)

	return s, nil
}

// Sign issues an access token for principalID. The jti is always fresh and
// registered claim types in identity are dropped.
func (s *Signer) Sign(principalID int64, identity claims.Set, issuedAt, expiresAt time.Time) (*AccessToken, error) {
	if s.signKey == nil {
		return nil, errors.New("signer has no signing key")
	}

	jti := uuid.NewString()

	payload := jwt.MapClaims{}
	for k, v := range identity.Identity().Map() {
		payload[k] = v
	}
	payload[claims.JTI] = jti
	payload[claims.Subject] = strconv.FormatInt(principalID, 10)
	payload[claims.IssuedAt] = jwt.NewNumericDate(issuedAt)
	payload[claims.ExpiresAt] = jwt.NewNumericDate(expiresAt)
	if s.issuer != "" {
		payload[claims.Issuer] = s.issuer
	}
	if s.audience != "" {
		payload[claims.Audience] = s.audience
	}

	signed, err := jwt.NewWithClaims(s.method, payload).SignedString(s.signKey)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AccessToken{Token: signed, JTI: jti, ExpiresAt: jwt.NewNumericDate(expiresAt).Time}, nil
}

// Validate dispatches to the strict or lenient profile.
func (s *Signer) Validate(token string, enforceExpiry bool) (*Verified, error) {
	if enforceExpiry {
		return s.ValidateStrict(token)
	}
	return s.ValidateLenient(token)
}

// ValidateStrict verifies signature, algorithm, issuer, audience and expiry.
func (s *Signer) ValidateStrict(token string) (*Verified, error) {
	mc, err := s.parse(s.strict, token)
	if err != nil {
		return nil, err
	}
	return verified(mc)
}

// ValidateLenient verifies signature, algorithm, issuer and audience. Expiry
// is ignored on purpose.
func (s *Signer) ValidateLenient(token string) (*Verified, error) {
	mc, err := s.parse(s.lenient, token)
	if err != nil {
		return nil, err
	}

	if s.issuer != "" {
		if iss, _ := mc.GetIssuer(); iss != s.issuer {
			return nil, fmt.Errorf("%w: issuer %q", common.ErrAudienceOrIssuerMismatch, iss)
		}
	}
	if s.audience != "" {
		aud, _ := mc.GetAudience()
		if !slices.Contains(aud, s.audience) {
			return nil, fmt.Errorf("%w: audience %v", common.ErrAudienceOrIssuerMismatch, aud)
		}
	}

	return verified(mc)
}

func (s *Signer) parse(p *jwt.Parser, token string) (jwt.MapClaims, error) {
	mc := jwt.MapClaims{}
	parsed, err := p.ParseWithClaims(token, mc, s.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, common.ErrSignatureInvalid
	}
	return mc, nil
}

func (s *Signer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != s.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	return s.verifyKey, nil
}

// classify maps jwt errors onto the common taxonomy. The jwt error is kept
// in the message for logs only.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", common.ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", common.ErrAudienceOrIssuerMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", common.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrInvalidType):
		return fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrSignatureInvalid, err)
	}
}

func verified(mc jwt.MapClaims) (*Verified, error) {
	v := &Verified{Claims: claims.FromMap(mc)}

	if jti, ok := mc[claims.JTI].(string); ok {
		v.JTI = jti
	}
	v.Subject, _ = mc.GetSubject()
	v.Issuer, _ = mc.GetIssuer()
	v.Audience, _ = mc.GetAudience()

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	if exp != nil {
		v.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		v.IssuedAt = iat.Time
	}

	return v, nil
}
