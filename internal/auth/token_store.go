package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onecgate/onecgate/internal/instrumentation"
)

// TokenStore manages issued access and refresh tokens in memory.
//
// Access and refresh tokens live in separate maps, so a refresh token can
// never validate a resource request and vice versa. Expiry is enforced at
// lookup time; the background sweep only reclaims memory.
type TokenStore struct {
	accessTokens  map[string]*AccessToken
	refreshTokens map[string]*RefreshToken
	accessTTL     time.Duration
	refreshTTL    time.Duration
	mu            sync.RWMutex
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
	stop          chan struct{}
	once          sync.Once
}

// Token kinds reported on the active token gauge
const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// NewTokenStore creates a new token store with the given TTLs.
// Zero TTLs fall back to the defaults.
func NewTokenStore(accessTTL, refreshTTL time.Duration, logger *slog.Logger) *TokenStore {
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &TokenStore{
		accessTokens:  make(map[string]*AccessToken),
		refreshTokens: make(map[string]*RefreshToken),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		metrics:       &instrumentation.Metrics{},
		logger:        logger,
		stop:          make(chan struct{}),
	}

	go s.sweep()

	return s
}

// SetMetrics attaches a metrics recorder for the active token gauge.
// A nil recorder resets the store to the no-op default.
func (s *TokenStore) SetMetrics(m *instrumentation.Metrics) {
	if m == nil {
		m = &instrumentation.Metrics{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// AccessTTL returns the configured access token lifetime
func (s *TokenStore) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue creates a new access token (and optionally a refresh token) bound
// to the given credential
func (s *TokenStore) Issue(clientID string, cred Credential, scope string, withRefresh bool) (*AccessToken, *RefreshToken, error) {
	access, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	accessToken := &AccessToken{
		Token:      access,
		ClientID:   clientID,
		Credential: cred,
		Scope:      scope,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(s.accessTTL).Unix(),
	}

	var refreshToken *RefreshToken
	if withRefresh {
		refresh, err := generateSecureToken(RefreshTokenLength)
		if err != nil {
			return nil, nil, err
		}
		refreshToken = &RefreshToken{
			Token:      refresh,
			ClientID:   clientID,
			Credential: cred,
			Scope:      scope,
			IssuedAt:   now.Unix(),
			ExpiresAt:  now.Add(s.refreshTTL).Unix(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens[access] = accessToken
	s.metrics.AddActiveTokens(context.Background(), tokenKindAccess, 1)
	if refreshToken != nil {
		s.refreshTokens[refreshToken.Token] = refreshToken
		s.metrics.AddActiveTokens(context.Background(), tokenKindRefresh, 1)
	}

	return accessToken, refreshToken, nil
}

// IssueRefresh creates a standalone refresh token bound to the given
// credential (used by refresh token rotation)
func (s *TokenStore) IssueRefresh(clientID string, cred Credential, scope string) (*RefreshToken, error) {
	refresh, err := generateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &RefreshToken{
		Token:      refresh,
		ClientID:   clientID,
		Credential: cred,
		Scope:      scope,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(s.refreshTTL).Unix(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[refresh] = record
	s.metrics.AddActiveTokens(context.Background(), tokenKindRefresh, 1)

	return record, nil
}

// ValidateAccess looks up an access token and returns its bound credential.
// Unknown and expired tokens both return ErrUnauthorized.
func (s *TokenStore) ValidateAccess(token string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.accessTokens[token]
	if !exists {
		return nil, ErrUnauthorized
	}

	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrUnauthorized
	}

	return record, nil
}

// ValidateRefresh looks up a refresh token.
// Unknown and expired tokens both return ErrUnauthorized.
func (s *TokenStore) ValidateRefresh(token string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.refreshTokens[token]
	if !exists {
		return nil, ErrUnauthorized
	}

	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrUnauthorized
	}

	return record, nil
}

// DeleteRefresh removes a refresh token (used by rotation)
func (s *TokenStore) DeleteRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[token]; ok {
		delete(s.refreshTokens, token)
		s.metrics.AddActiveTokens(context.Background(), tokenKindRefresh, -1)
	}
}

// Stats returns counts of live tokens
func (s *TokenStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"access_tokens":  len(s.accessTokens),
		"refresh_tokens": len(s.refreshTokens),
	}
}

// Close stops the background sweep goroutine
func (s *TokenStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// sweep periodically removes expired tokens.
// Expired entries are collected under a read lock and re-checked under the
// write lock before deletion.
func (s *TokenStore) sweep() {
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

func (s *TokenStore) sweepExpired() {
	now := time.Now().Unix()

	s.mu.RLock()
	expiredAccess := []string{}
	expiredRefresh := []string{}
	for token, record := range s.accessTokens {
		if now > record.ExpiresAt {
			expiredAccess = append(expiredAccess, token)
		}
	}
	for token, record := range s.refreshTokens {
		if now > record.ExpiresAt {
			expiredRefresh = append(expiredRefresh, token)
		}
	}
	s.mu.RUnlock()

	if len(expiredAccess) == 0 && len(expiredRefresh) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := time.Now().Unix()
	deletedAccess := 0
	deletedRefresh := 0

	for _, token := range expiredAccess {
		if record, ok := s.accessTokens[token]; ok && current > record.ExpiresAt {
			delete(s.accessTokens, token)
			deletedAccess++
		}
	}
	for _, token := range expiredRefresh {
		if record, ok := s.refreshTokens[token]; ok && current > record.ExpiresAt {
			delete(s.refreshTokens, token)
			deletedRefresh++
		}
	}

	if deletedAccess > 0 {
		s.metrics.AddActiveTokens(context.Background(), tokenKindAccess, -int64(deletedAccess))
	}
	if deletedRefresh > 0 {
		s.metrics.AddActiveTokens(context.Background(), tokenKindRefresh, -int64(deletedRefresh))
	}

	s.logger.Debug("Swept expired tokens", "tokens_deleted", deletedAccess+deletedRefresh)
}
