package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func signHS256(t *testing.T, secret []byte, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestAuthenticate_HS256(t *testing.T) {
	secret := []byte("test-secret")
	a, err := New(Config{HMACSecret: secret, Now: fixedNow}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		token    string
		want     string
		wantErr  error
		anyError bool
	}{
		{
			name:  "subject",
			token: signHS256(t, secret, jwt.MapClaims{"sub": "athlete-1", "exp": testNow.Add(time.Hour).Unix()}),
			want:  "athlete-1",
		},
		{
			name:  "user_id fallback",
			token: signHS256(t, secret, jwt.MapClaims{"user_id": "athlete-2"}),
			want:  "athlete-2",
		},
		{
			name:    "expired",
			token:   signHS256(t, secret, jwt.MapClaims{"sub": "athlete-1", "exp": testNow.Add(-time.Hour).Unix()}),
			wantErr: ErrExpiredToken,
		},
		{
			name:    "wrong secret",
			token:   signHS256(t, []byte("other"), jwt.MapClaims{"sub": "athlete-1"}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "no identity",
			token:   signHS256(t, secret, jwt.MapClaims{"role": "athlete"}),
			wantErr: ErrMissingIdentity,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty",
			token:   "  ",
			wantErr: ErrMissingToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("identity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticate_RejectsAlgorithmSwitch(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	a, err := New(Config{HMACSecret: []byte("secret"), Now: fixedNow}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "x"}).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := a.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticate_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	a, err := New(Config{
		PublicKey: &key.PublicKey,
		Issuer:    "matchfeed-auth",
		Audience:  "matchfeed",
		Now:       fixedNow,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sign := func(c jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}

	got, err := a.Authenticate(sign(jwt.MapClaims{"sub": "brand-7", "iss": "matchfeed-auth", "aud": "matchfeed"}))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got != "brand-7" {
		t.Errorf("identity = %q, want brand-7", got)
	}

	if _, err := a.Authenticate(sign(jwt.MapClaims{"sub": "brand-7", "iss": "someone-else", "aud": "matchfeed"})); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong issuer err = %v, want ErrInvalidToken", err)
	}
	if _, err := a.Authenticate(sign(jwt.MapClaims{"sub": "brand-7", "iss": "matchfeed-auth"})); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing audience err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticate_InsecureSkipVerify(t *testing.T) {
	a, err := New(Config{InsecureSkipVerify: true}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token := signHS256(t, []byte("whatever"), jwt.MapClaims{"sub": "athlete-9"})
	got, err := a.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got != "athlete-9" {
		t.Errorf("identity = %q, want athlete-9", got)
	}

	if _, err := a.Authenticate("still-not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestNew_Errors(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	if _, err := New(Config{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("empty config err = %v, want ErrNotConfigured", err)
	}
	if _, err := New(Config{HMACSecret: []byte("s"), PublicKey: &key.PublicKey}, nil); err == nil {
		t.Error("expected error when both keys are set")
	}
}

func TestLoadPublicKey_PKIX(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal PKIX: %v", err)
	}

	tmpFile := filepath.Join(t.TempDir(), "pub.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	loaded, err := LoadPublicKey(tmpFile)
	if err != nil {
		t.Fatalf("LoadPublicKey failed: %v", err)
	}
	if loaded.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPublicKey_PKCS1(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	block := &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&privateKey.PublicKey)}
	tmpFile := filepath.Join(t.TempDir(), "pub.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	loaded, err := LoadPublicKey(tmpFile)
	if err != nil {
		t.Fatalf("LoadPublicKey failed: %v", err)
	}
	if loaded.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPublicKey_Errors(t *testing.T) {
	if _, err := LoadPublicKey("/nonexistent/path/to/key.pem"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	tmpFile := filepath.Join(t.TempDir(), "invalid.pem")
	if err := os.WriteFile(tmpFile, []byte("not a pem file"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if _, err := LoadPublicKey(tmpFile); err == nil {
		t.Error("expected error for invalid PEM")
	}
}
