package auth

import (
	"testing"
	"time"
)

func TestTokenStore_IssueAndValidate(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	cred := Credential{Username: "operator", Password: "secret"}

	access, refresh, err := store.Issue("client-1", cred, "mcp", true)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if access == nil || refresh == nil {
		t.Fatal("Issue() with refresh should return both tokens")
	}
	if access.Token == refresh.Token {
		t.Error("access and refresh tokens should differ")
	}

	got, err := store.ValidateAccess(access.Token)
	if err != nil {
		t.Fatalf("ValidateAccess() error = %v", err)
	}
	if got.Credential != cred {
		t.Errorf("ValidateAccess() credential = %+v, want %+v", got.Credential, cred)
	}
	if got.Scope != "mcp" {
		t.Errorf("ValidateAccess() scope = %q, want %q", got.Scope, "mcp")
	}

	gotRefresh, err := store.ValidateRefresh(refresh.Token)
	if err != nil {
		t.Fatalf("ValidateRefresh() error = %v", err)
	}
	if gotRefresh.ClientID != "client-1" {
		t.Errorf("ValidateRefresh() client = %q, want client-1", gotRefresh.ClientID)
	}
}

func TestTokenStore_IssueWithoutRefresh(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	access, refresh, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if access == nil {
		t.Fatal("Issue() returned nil access token")
	}
	if refresh != nil {
		t.Error("Issue() without refresh should return nil refresh token")
	}
}

func TestTokenStore_NamespacesAreSeparate(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	access, refresh, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", true)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := store.ValidateAccess(refresh.Token); err == nil {
		t.Error("a refresh token must not validate as an access token")
	}
	if _, err := store.ValidateRefresh(access.Token); err == nil {
		t.Error("an access token must not validate as a refresh token")
	}
}

func TestTokenStore_UnknownToken(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	if _, err := store.ValidateAccess("no-such-token"); err != ErrUnauthorized {
		t.Errorf("ValidateAccess() error = %v, want ErrUnauthorized", err)
	}
	if _, err := store.ValidateRefresh("no-such-token"); err != ErrUnauthorized {
		t.Errorf("ValidateRefresh() error = %v, want ErrUnauthorized", err)
	}
}

func TestTokenStore_Expired(t *testing.T) {
	store := NewTokenStore(-time.Second, -time.Second, nil)
	defer store.Close()

	access, refresh, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", true)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := store.ValidateAccess(access.Token); err != ErrUnauthorized {
		t.Errorf("ValidateAccess() of expired token error = %v, want ErrUnauthorized", err)
	}
	if _, err := store.ValidateRefresh(refresh.Token); err != ErrUnauthorized {
		t.Errorf("ValidateRefresh() of expired token error = %v, want ErrUnauthorized", err)
	}
}

func TestTokenStore_IssueRefresh(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	cred := Credential{Username: "u", Password: "p"}
	refresh, err := store.IssueRefresh("client-1", cred, "mcp")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	got, err := store.ValidateRefresh(refresh.Token)
	if err != nil {
		t.Fatalf("ValidateRefresh() error = %v", err)
	}
	if got.Credential != cred {
		t.Errorf("ValidateRefresh() credential = %+v, want %+v", got.Credential, cred)
	}
}

func TestTokenStore_DeleteRefresh(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	refresh, err := store.IssueRefresh("client-1", Credential{Username: "u", Password: "p"}, "")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	store.DeleteRefresh(refresh.Token)

	if _, err := store.ValidateRefresh(refresh.Token); err != ErrUnauthorized {
		t.Errorf("ValidateRefresh() after delete error = %v, want ErrUnauthorized", err)
	}
}

func TestTokenStore_Stats(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	defer store.Close()

	stats := store.Stats()
	if stats["access_tokens"] != 0 || stats["refresh_tokens"] != 0 {
		t.Errorf("new store Stats() = %v, want zeros", stats)
	}

	if _, _, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", true); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, _, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", false); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	stats = store.Stats()
	if stats["access_tokens"] != 2 {
		t.Errorf("Stats() access_tokens = %d, want 2", stats["access_tokens"])
	}
	if stats["refresh_tokens"] != 1 {
		t.Errorf("Stats() refresh_tokens = %d, want 1", stats["refresh_tokens"])
	}
}

func TestTokenStore_SweepExpired(t *testing.T) {
	store := NewTokenStore(-time.Second, -time.Second, nil)
	defer store.Close()

	if _, _, err := store.Issue("client-1", Credential{Username: "u", Password: "p"}, "", true); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	store.sweepExpired()

	stats := store.Stats()
	if stats["access_tokens"] != 0 || stats["refresh_tokens"] != 0 {
		t.Errorf("Stats() after sweep = %v, want zeros", stats)
	}
}

func TestTokenStore_CloseIsIdempotent(t *testing.T) {
	store := NewTokenStore(time.Hour, 24*time.Hour, nil)
	store.Close()
	store.Close()
}
