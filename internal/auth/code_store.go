package auth

import (
	"log/slog"
	"sync"
	"time"
)

// CodeStore manages issued authorization codes.
//
// Codes are strictly single-use: Consume checks expiry and PKCE and deletes
// the record under one lock acquisition, so two concurrent redemptions of
// the same code can never both succeed.
type CodeStore struct {
	codes  map[string]*AuthorizationCode
	ttl    time.Duration
	mu     sync.Mutex
	logger *slog.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewCodeStore creates a new code store with the given code TTL.
// If ttl is zero, DefaultAuthorizationCodeTTL is used.
func NewCodeStore(ttl time.Duration, logger *slog.Logger) *CodeStore {
	if ttl == 0 {
		ttl = DefaultAuthorizationCodeTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CodeStore{
		codes:  make(map[string]*AuthorizationCode),
		ttl:    ttl,
		logger: logger,
		stop:   make(chan struct{}),
	}

	go s.sweep()

	return s
}

// Issue generates and stores a new authorization code bound to the given
// credential and PKCE challenge
func (s *CodeStore) Issue(clientID, redirectURI, scope, challenge, method string, cred Credential) (string, error) {
	code, err := generateSecureToken(AuthorizationCodeLength)
	if err != nil {
		return "", err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code] = &AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		Credential:          cred,
		CreatedAt:           now.Unix(),
		ExpiresAt:           now.Add(s.ttl).Unix(),
	}

	s.logger.Debug("Issued authorization code",
		"code_prefix", code[:8]+"...",
		"client_id", clientID,
		"expires_at", now.Add(s.ttl),
	)

	return code, nil
}

// Consume redeems an authorization code and returns the bound record.
// The code is deleted under the same lock regardless of whether PKCE
// verification succeeds, so a failed redemption also burns the code.
//
// Every failure is reported as a generic invalid_grant: callers must not
// learn whether the code was unknown, expired, bound to another client, or
// failed PKCE.
func (s *CodeStore) Consume(code, clientID, redirectURI, codeVerifier string) (*AuthorizationCode, *OAuthError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.codes[code]
	if !exists {
		return nil, ErrInvalidGrant("invalid authorization code")
	}

	// Single use: delete before any further checks
	delete(s.codes, code)

	if time.Now().Unix() > record.ExpiresAt {
		s.logger.Debug("Authorization code expired", "code_prefix", code[:8]+"...")
		return nil, ErrInvalidGrant("invalid authorization code")
	}

	if record.ClientID != clientID {
		s.logger.Warn("Authorization code presented by wrong client",
			"code_prefix", code[:8]+"...",
			"client_id", clientID,
		)
		return nil, ErrInvalidGrant("invalid authorization code")
	}

	if record.RedirectURI != redirectURI {
		s.logger.Warn("Authorization code redirect_uri mismatch",
			"code_prefix", code[:8]+"...",
			"client_id", clientID,
		)
		return nil, ErrInvalidGrant("invalid authorization code")
	}

	if record.CodeChallenge != "" {
		if codeVerifier == "" || !ValidateCodeChallenge(codeVerifier, record.CodeChallenge, record.CodeChallengeMethod) {
			s.logger.Warn("PKCE verification failed",
				"code_prefix", code[:8]+"...",
				"client_id", clientID,
				"method", record.CodeChallengeMethod,
			)
			return nil, ErrInvalidGrant("invalid authorization code")
		}
	}

	s.logger.Info("Authorization code consumed",
		"code_prefix", code[:8]+"...",
		"client_id", clientID,
	)

	return record, nil
}

// Len returns the number of outstanding codes
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// Close stops the background sweep goroutine
func (s *CodeStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// sweep periodically removes expired codes
func (s *CodeStore) sweep() {
	ticker := time.NewTicker(DefaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.stop:
			return
		}
	}
}

// sweepExpired removes expired codes (consumed codes are already deleted)
func (s *CodeStore) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	deleted := 0

	for code, record := range s.codes {
		if now > record.ExpiresAt {
			delete(s.codes, code)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Debug("Swept expired authorization codes", "codes_deleted", deleted)
	}
}
