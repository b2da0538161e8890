package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("s3cret", "sillytavern", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken("s3cret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "sillytavern" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestParseTokenRejects(t *testing.T) {
	good, err := GenerateToken("s3cret", "host", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	noExpiry, err := GenerateToken("s3cret", "host", -time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cases := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"garbage", "s3cret", "not-a-token"},
		{"empty", "s3cret", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseToken(tc.secret, tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	// ttl <= 0 不设置过期时间
	if _, err := ParseToken("s3cret", noExpiry); err != nil {
		t.Fatalf("token without expiry should be valid: %v", err)
	}
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	if _, err := GenerateToken("", "host", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
