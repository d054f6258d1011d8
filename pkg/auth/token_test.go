package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/google/uuid"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "licensegate",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Email:  "user@example.com",
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.IsAdmin {
		t.Fatalf("expected non-admin claims")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	now := time.Now().UTC()
	mintCfg := config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 30}
	token, err := MintAccessToken(mintCfg, now, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	parseCfg := config.JWTConfig{Secret: "secret", Issuer: "licensegate"}
	if _, err := ParseAccessToken(parseCfg, token); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "licensegate", ExpirationMinutes: 1}
	past := time.Now().UTC().Add(-time.Hour)
	token, err := MintAccessToken(cfg, past, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestMintAccessTokenRequiresUserID(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "licensegate", ExpirationMinutes: 30}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatalf("expected missing user id error")
	}
}
