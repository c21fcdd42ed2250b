package auth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onecgate/onecgate/internal/logging"
)

// ClientStore holds dynamically registered OAuth clients. Registration
// is open (RFC 7591), so the per-IP counter caps how many clients a
// single address can create.
type ClientStore struct {
	clients      map[string]*Client
	clientsPerIP map[string]int
	mu           sync.RWMutex
	logger       *slog.Logger
}

// NewClientStore creates an empty client store.
func NewClientStore(logger *slog.Logger) *ClientStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &ClientStore{
		clients:      make(map[string]*Client),
		clientsPerIP: make(map[string]int),
		logger:       logger,
	}
}

// CheckIPLimit reports whether ip may register another client.
// A non-positive limit disables the check.
func (s *ClientStore) CheckIPLimit(ip string, maxClientsPerIP int) error {
	if maxClientsPerIP <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if count := s.clientsPerIP[ip]; count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d)", ip, count, maxClientsPerIP)
	}

	return nil
}

// RegisterClient registers a new OAuth client and returns the client info.
// Every registration yields a fresh client_id, even for identical requests.
// clientIP is used for DoS protection via per-IP limits.
func (s *ClientStore) RegisterClient(req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientID, err := generateSecureToken(ClientIDTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate client ID: %w", err)
	}

	tokenEndpointAuthMethod := req.TokenEndpointAuthMethod
	if tokenEndpointAuthMethod == "" {
		tokenEndpointAuthMethod = DefaultTokenEndpointAuthMethod
	}
	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	// Public clients get no secret; confidential clients get a generated
	// secret that is returned exactly once and stored only as a bcrypt hash.
	var clientSecret, secretHashStr string
	if tokenEndpointAuthMethod != "none" {
		clientSecret, err = generateSecureToken(ClientSecretTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate client secret: %w", err)
		}

		secretHash, hashErr := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, fmt.Errorf("failed to hash client secret: %w", hashErr)
		}
		secretHashStr = string(secretHash)
	}

	now := time.Now().Unix()

	client := &Client{
		ClientID:                clientID,
		ClientSecretHash:        secretHashStr,
		ClientIDIssuedAt:        now,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}

	s.clients[clientID] = client

	if clientIP != "" {
		s.clientsPerIP[clientIP]++
	}

	s.logger.Info("Registered new OAuth client",
		logging.ClientID(clientID),
		"client_name", req.ClientName,
		"client_ip", clientIP,
		"clients_from_ip", s.clientsPerIP[clientIP],
		"redirect_uris", req.RedirectURIs,
		"grant_types", grantTypes,
	)

	// The plaintext secret appears in this response and nowhere else
	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret,
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}, nil
}

// GetClient looks up a registered client by id.
func (s *ClientStore) GetClient(clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found")
	}
	return client, nil
}

// ValidateClientSecret compares the presented secret against the stored
// bcrypt hash. Public clients have no secret and always fail here.
func (s *ClientStore) ValidateClientSecret(clientID, clientSecret string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client not found")
	}
	if client.ClientSecretHash == "" {
		return fmt.Errorf("client has no secret")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return fmt.Errorf("invalid client secret")
	}
	return nil
}

// ValidateRedirectURI requires an exact match against the client's
// registered URIs.
func (s *ClientStore) ValidateRedirectURI(clientID, redirectURI string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client not found")
	}
	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}
	return fmt.Errorf("redirect_uri not registered for this client")
}

// Count returns the number of registered clients.
func (s *ClientStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
