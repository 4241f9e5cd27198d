package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"llmarena/internal/domain"
)

func testKeyAndVerifier(t *testing.T) (*rsa.PrivateKey, *JWKSVerifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return key, newVerifier(kf, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sign(t *testing.T, key *rsa.PrivateKey, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	var signingKey interface{} = key
	if method == jwt.SigningMethodHS256 {
		signingKey = []byte("shared-secret")
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return token
}

func TestVerifyToken(t *testing.T) {
	key, verifier := testKeyAndVerifier(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		method  jwt.SigningMethod
		claims  Claims
		wantErr bool
	}{
		{
			name:   "valid",
			method: jwt.SigningMethodRS256,
			claims: Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future}, Role: "authenticated"},
		},
		{
			name:    "expired",
			method:  jwt.SigningMethodRS256,
			claims:  Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: past}},
			wantErr: true,
		},
		{
			name:    "no expiry",
			method:  jwt.SigningMethodRS256,
			claims:  Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}},
			wantErr: true,
		},
		{
			name:    "missing subject",
			method:  jwt.SigningMethodRS256,
			claims:  Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}},
			wantErr: true,
		},
		{
			name:    "anonymous",
			method:  jwt.SigningMethodRS256,
			claims:  Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future}, Role: "anon"},
			wantErr: true,
		},
		{
			name:    "symmetric algorithm",
			method:  jwt.SigningMethodHS256,
			claims:  Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.VerifyToken(sign(t, key, tt.method, tt.claims))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.GetUserID() != "user-1" {
				t.Errorf("user id = %q", claims.GetUserID())
			}
		})
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	_, verifier := testKeyAndVerifier(t)
	if _, err := verifier.VerifyToken("not.a.jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNewJWTVerifier_RequiresURL(t *testing.T) {
	if _, err := NewJWTVerifier(t.Context(), "", slog.Default()); err == nil {
		t.Error("expected error for empty JWKS URL")
	}
}
