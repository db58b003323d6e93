package auth

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is a JWS "alg" value from the allow-list.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	ES256 Algorithm = "ES256"
	EdDSA Algorithm = "EdDSA"
)

// MinSecretLen is the shortest accepted HMAC secret.
const MinSecretLen = 32

func (a Algorithm) method() (jwt.SigningMethod, error) {
	switch a {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	case RS256:
		return jwt.SigningMethodRS256, nil
	case ES256:
		return jwt.SigningMethodES256, nil
	case EdDSA:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", string(a))
	}
}

func (a Algorithm) symmetric() bool {
	return a == HS256 || a == HS384 || a == HS512
}

// ErrKeyMismatch means the configured public key is not the one derived
// from the private key.
var ErrKeyMismatch = errors.New("private and public keys do not match")

// LoadKeys turns configured key material into signing and verification keys.
// HMAC algorithms use secret for both. Asymmetric algorithms read PEM blocks;
// with only a public key the result verifies but cannot sign. When both are
// given they must form a pair.
func LoadKeys(alg Algorithm, secret, privatePEM, publicPEM []byte) (signKey, verifyKey any, err error) {
	if _, err := alg.method(); err != nil {
		return nil, nil, err
	}

	if alg.symmetric() {
		if len(secret) < MinSecretLen {
			return nil, nil, fmt.Errorf("%s secret must be at least %d bytes", alg, MinSecretLen)
		}
		return secret, secret, nil
	}

	if len(privatePEM) == 0 && len(publicPEM) == 0 {
		return nil, nil, fmt.Errorf("%s requires a private or public key", alg)
	}

	switch alg {
	case RS256:
		if len(privatePEM) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return nil, nil, fmt.Errorf("parse rsa private key: %w", err)
			}
			signKey, verifyKey = priv, &priv.PublicKey
		}
		if len(publicPEM) > 0 {
			if verifyKey, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM); err != nil {
				return nil, nil, fmt.Errorf("parse rsa public key: %w", err)
			}
		}
	case ES256:
		if len(privatePEM) > 0 {
			priv, err := jwt.ParseECPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return nil, nil, fmt.Errorf("parse ec private key: %w", err)
			}
			signKey, verifyKey = priv, &priv.PublicKey
		}
		if len(publicPEM) > 0 {
			if verifyKey, err = jwt.ParseECPublicKeyFromPEM(publicPEM); err != nil {
				return nil, nil, fmt.Errorf("parse ec public key: %w", err)
			}
		}
	case EdDSA:
		if len(privatePEM) > 0 {
			parsed, err := jwt.ParseEdPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return nil, nil, fmt.Errorf("parse ed25519 private key: %w", err)
			}
			priv, ok := parsed.(ed25519.PrivateKey)
			if !ok {
				return nil, nil, fmt.Errorf("unexpected ed25519 private key type %T", parsed)
			}
			signKey, verifyKey = priv, priv.Public()
		}
		if len(publicPEM) > 0 {
			if verifyKey, err = jwt.ParseEdPublicKeyFromPEM(publicPEM); err != nil {
				return nil, nil, fmt.Errorf("parse ed25519 public key: %w", err)
			}
		}
	}

	if signKey != nil && len(publicPEM) > 0 {
		if err := matchKeyPair(signKey, verifyKey); err != nil {
			return nil, nil, err
		}
	}

	return signKey, verifyKey, nil
}

func matchKeyPair(signKey, verifyKey any) error {
	signer, ok := signKey.(crypto.Signer)
	if !ok {
		return fmt.Errorf("unexpected private key type %T", signKey)
	}
	derived, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !derived.Equal(verifyKey) {
		return ErrKeyMismatch
	}
	return nil
}
