package auth

import (
	"testing"
	"time"
)

func TestCodeStore_IssueAndConsume(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	cred := Credential{Username: "operator", Password: "secret"}

	code, err := store.Issue("client-1", "http://localhost:8080/callback", "mcp", "", "", cred)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if code == "" {
		t.Fatal("Issue() returned empty code")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	record, oauthErr := store.Consume(code, "client-1", "http://localhost:8080/callback", "")
	if oauthErr != nil {
		t.Fatalf("Consume() error = %v", oauthErr)
	}
	if record.Credential != cred {
		t.Errorf("Consume() credential = %+v, want %+v", record.Credential, cred)
	}
	if record.Scope != "mcp" {
		t.Errorf("Consume() scope = %q, want %q", record.Scope, "mcp")
	}
	if store.Len() != 0 {
		t.Errorf("Len() after consume = %d, want 0", store.Len())
	}
}

func TestCodeStore_SingleUse(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	code, err := store.Issue("client-1", "http://localhost/cb", "", "", "", Credential{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", ""); oauthErr != nil {
		t.Fatalf("first Consume() error = %v", oauthErr)
	}

	_, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", "")
	if oauthErr == nil {
		t.Fatal("second Consume() of the same code should fail")
	}
	if oauthErr.Code != "invalid_grant" {
		t.Errorf("second Consume() error code = %q, want invalid_grant", oauthErr.Code)
	}
}

func TestCodeStore_Expired(t *testing.T) {
	store := NewCodeStore(-time.Second, nil)
	defer store.Close()

	code, err := store.Issue("client-1", "http://localhost/cb", "", "", "", Credential{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", "")
	if oauthErr == nil {
		t.Fatal("Consume() of expired code should fail")
	}
	if oauthErr.Code != "invalid_grant" {
		t.Errorf("Consume() error code = %q, want invalid_grant", oauthErr.Code)
	}
}

func TestCodeStore_WrongClient(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	code, _ := store.Issue("client-1", "http://localhost/cb", "", "", "", Credential{Username: "u", Password: "p"})

	_, oauthErr := store.Consume(code, "client-2", "http://localhost/cb", "")
	if oauthErr == nil {
		t.Fatal("Consume() by a different client should fail")
	}
	if oauthErr.Code != "invalid_grant" {
		t.Errorf("Consume() error code = %q, want invalid_grant", oauthErr.Code)
	}

	// The failed attempt burns the code
	if _, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", ""); oauthErr == nil {
		t.Error("code should be burned after a failed redemption")
	}
}

func TestCodeStore_WrongRedirectURI(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	code, _ := store.Issue("client-1", "http://localhost/cb", "", "", "", Credential{Username: "u", Password: "p"})

	_, oauthErr := store.Consume(code, "client-1", "http://evil.example/cb", "")
	if oauthErr == nil {
		t.Fatal("Consume() with a different redirect_uri should fail")
	}
}

func TestCodeStore_PKCE(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	verifier := "pkce-verifier-value-with-enough-entropy-12345"
	challenge := GenerateCodeChallenge(verifier)

	code, _ := store.Issue("client-1", "http://localhost/cb", "", challenge, ChallengeMethodS256,
		Credential{Username: "u", Password: "p"})

	if _, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", verifier); oauthErr != nil {
		t.Fatalf("Consume() with correct verifier error = %v", oauthErr)
	}

	code, _ = store.Issue("client-1", "http://localhost/cb", "", challenge, ChallengeMethodS256,
		Credential{Username: "u", Password: "p"})

	if _, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", "wrong-verifier"); oauthErr == nil {
		t.Fatal("Consume() with wrong verifier should fail")
	}
}

func TestCodeStore_PKCEVerifierRequired(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	challenge := GenerateCodeChallenge("verifier")
	code, _ := store.Issue("client-1", "http://localhost/cb", "", challenge, ChallengeMethodS256,
		Credential{Username: "u", Password: "p"})

	_, oauthErr := store.Consume(code, "client-1", "http://localhost/cb", "")
	if oauthErr == nil {
		t.Fatal("Consume() without verifier should fail when a challenge was bound")
	}
}

func TestCodeStore_UnknownCode(t *testing.T) {
	store := NewCodeStore(time.Minute, nil)
	defer store.Close()

	_, oauthErr := store.Consume("no-such-code", "client-1", "http://localhost/cb", "")
	if oauthErr == nil {
		t.Fatal("Consume() of unknown code should fail")
	}
	if oauthErr.Code != "invalid_grant" {
		t.Errorf("Consume() error code = %q, want invalid_grant", oauthErr.Code)
	}
}
