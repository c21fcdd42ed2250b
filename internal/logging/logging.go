// Package logging provides shared slog attribute helpers so that log
// entries use the same keys across the gateway, and sanitizers for the
// values that must never appear in logs verbatim.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Attribute keys shared across packages.
const (
	KeyGrant    = "grant_type"
	KeyClientID = "client_id"
	KeyUserHash = "user_hash"
	KeyError    = "error"
	KeyMethod   = "method"
)

// Grant tags an entry with the OAuth grant type.
func Grant(grantType string) slog.Attr {
	return slog.String(KeyGrant, grantType)
}

// ClientID tags an entry with the OAuth client id.
func ClientID(id string) slog.Attr {
	return slog.String(KeyClientID, id)
}

// Method tags an entry with the back-end RPC method name.
func Method(method string) slog.Attr {
	return slog.String(KeyMethod, method)
}

// Err tags an entry with an error. Err(nil) yields an empty group that
// slog omits from output, so it is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeUser hashes a back-end username for logging. Usernames
// identify real ERP accounts, so entries carry a stable hash that still
// allows correlation across log lines.
func AnonymizeUser(username string) string {
	if username == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(username))
	return "user:" + hex.EncodeToString(sum[:8])
}

// UserHash tags an entry with the anonymized back-end username.
func UserHash(username string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeUser(username))
}

// SanitizeToken masks a token for logging, keeping only its length.
// Even short prefixes of a bearer token narrow a brute-force search.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
