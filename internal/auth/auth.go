// Package auth resolves client identities from bearer tokens.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors
var (
	ErrMissingToken    = errors.New("token is required")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token is expired")
	ErrMissingIdentity = errors.New("token has no subject")
	ErrNotConfigured   = errors.New("no verification key configured")
)

// Authenticator turns a token into an identity.
type Authenticator interface {
	Authenticate(token string) (identity string, err error)
}

// Config holds token verification settings.
type Config struct {
	HMACSecret []byte         // HS256 shared secret
	PublicKey  *rsa.PublicKey // RS256 verification key
	Issuer     string         // Required "iss" when set
	Audience   string         // Required "aud" entry when set

	// InsecureSkipVerify decodes claims without checking the signature.
	// Only for local development.
	InsecureSkipVerify bool

	Now func() time.Time
}

// claims carries the identity fields clients may send. user_id is accepted
// for tokens issued without a subject.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

type jwtAuthenticator struct {
	cfg    Config
	parser *jwt.Parser
}

// New creates a JWT Authenticator.
func New(cfg Config, logger *slog.Logger) (Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(cfg.Now)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	switch {
	case cfg.InsecureSkipVerify:
		logger.Warn("token signature verification is disabled")
	case len(cfg.HMACSecret) > 0 && cfg.PublicKey != nil:
		return nil, fmt.Errorf("configure either an HMAC secret or a public key, not both")
	case len(cfg.HMACSecret) > 0:
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	case cfg.PublicKey != nil:
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	default:
		return nil, ErrNotConfigured
	}

	return &jwtAuthenticator{
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Authenticate verifies token and returns its subject.
func (a *jwtAuthenticator) Authenticate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	var c claims
	if a.cfg.InsecureSkipVerify {
		if _, _, err := a.parser.ParseUnverified(token, &c); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, err := a.parser.ParseWithClaims(token, &c, a.key); err != nil {
			return "", mapJWTError(err)
		}
	}

	identity := c.Subject
	if identity == "" {
		identity = c.UserID
	}
	if identity == "" {
		return "", ErrMissingIdentity
	}
	return identity, nil
}

func (a *jwtAuthenticator) key(*jwt.Token) (any, error) {
	if a.cfg.PublicKey != nil {
		return a.cfg.PublicKey, nil
	}
	return a.cfg.HMACSecret, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

// LoadPublicKey loads an RSA public key from a PEM file. Both PKIX
// "PUBLIC KEY" and PKCS#1 "RSA PUBLIC KEY" blocks are accepted.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKIX first (newer format)
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA public key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return rsaKey, nil
}
