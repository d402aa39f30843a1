// Package auth verifies bearer tokens presented on connection handshake.
// Token issuance happens elsewhere.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrUnknownSubject   = errors.New("token subject cannot be resolved")
)

// Claims are the JWT claims intentgate reads.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller behind a token.
type Identity struct {
	UserID    string
	Roles     []string
	ExpiresAt time.Time
}

// SubjectResolver maps a token subject to a user id, rejecting unknown or disabled subjects.
type SubjectResolver interface {
	Resolve(ctx context.Context, subject string) (string, error)
}

// Config holds JWT verification settings.
type Config struct {
	SigningMethod string // RS256 or HS256
	PublicKey     string // PEM, for RS256
	SecretKey     string // for HS256
	Issuer        string
	Audience      []string
	Leeway        time.Duration
}

// Validator verifies JWTs.
type Validator struct {
	publicKey     *rsa.PublicKey
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      []string
	leeway        time.Duration
	resolver      SubjectResolver
	now           func() time.Time
}

// NewValidator creates a validator. resolver can be nil, in which case the subject is the user id.
func NewValidator(cfg Config, resolver SubjectResolver) (*Validator, error) {
	v := &Validator{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		resolver: resolver,
		now:      time.Now,
	}

	switch cfg.SigningMethod {
	case "RS256":
		if cfg.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.signingMethod = jwt.SigningMethodRS256
		v.publicKey = key
	case "HS256":
		if cfg.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		v.signingMethod = jwt.SigningMethodHS256
		v.secretKey = []byte(cfg.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.SigningMethod)
	}

	return v, nil
}

// Verify checks signature, expiry, issuer and audience, then resolves the subject.
func (v *Validator) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.signingMethod.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, v.key, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return Identity{}, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidClaims
	}
	if err := v.checkAudience(claims.Audience); err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}

	userID := claims.Subject
	if v.resolver != nil {
		userID, err = v.resolver.Resolve(ctx, claims.Subject)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %w", ErrUnknownSubject, err)
		}
	}

	id := Identity{UserID: userID, Roles: claims.Roles}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (v *Validator) key(token *jwt.Token) (any, error) {
	switch v.signingMethod {
	case jwt.SigningMethodRS256:
		return v.publicKey, nil
	case jwt.SigningMethodHS256:
		return v.secretKey, nil
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

func (v *Validator) checkAudience(got jwt.ClaimStrings) error {
	if len(v.audience) == 0 {
		return nil
	}
	for _, aud := range v.audience {
		if slices.Contains(got, aud) {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid audience", ErrInvalidClaims)
}
