package auth

import (
	"testing"
	"time"

	"dinehall-order-engine/internal/authority"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	token, err := IssueAccessToken(7, 3, authority.TierManager, "Dana", "test-secret", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := VerifyAccessToken(token, "test-secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	staffID, err := claims.StaffIDInt()
	if err != nil || staffID != 7 {
		t.Fatalf("expected staff id 7, got %d (%v)", staffID, err)
	}
	if claims.LocationID != "3" {
		t.Fatalf("expected location 3, got %q", claims.LocationID)
	}
	if claims.AuthorityTier() != authority.TierManager {
		t.Fatalf("expected MANAGER tier, got %s", claims.Tier)
	}
	if claims.Name != "Dana" {
		t.Fatalf("expected name Dana, got %q", claims.Name)
	}
}

func TestVerifyAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueAccessToken(7, 3, authority.TierServer, "", "test-secret", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyAccessToken(token, "other-secret"); err == nil {
		t.Fatal("expected a token signed with another secret to be rejected")
	}
}

func TestVerifyAccessTokenRejectsExpired(t *testing.T) {
	token, err := IssueAccessToken(7, 3, authority.TierServer, "", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyAccessToken(token, "test-secret"); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"abc":        "",
		"":           "",
		"Basic abc":  "",
	}
	for header, want := range cases {
		if got := ParseBearerToken(header); got != want {
			t.Errorf("header %q: expected %q, got %q", header, want, got)
		}
	}
}
