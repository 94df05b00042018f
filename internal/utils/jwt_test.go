package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("k", "u-1", "manager", "acme", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(tok.Exp) <= 59*time.Minute {
		t.Fatalf("exp = %v", tok.Exp)
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["sub"] != "u-1" || claims["role"] != "manager" || claims["tenant_id"] != "acme" {
		t.Fatalf("claims = %v", claims)
	}

	tok, _ = NewAccessToken("k", "u-1", "owner", "", time.Hour)
	claims = jwt.MapClaims{}
	_, _ = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil })
	if _, ok := claims["tenant_id"]; ok {
		t.Fatal("tenant_id present for empty tenant")
	}
}
