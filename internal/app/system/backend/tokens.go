// internal/app/system/backend/tokens.go
package backend

import (
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore holds the self-hosted API bearer token between calls.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	ClearToken() error
}

// MemoryTokens is a TokenStore that lives for the process.
type MemoryTokens struct {
	mu    sync.RWMutex
	token string
}

func (m *MemoryTokens) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryTokens) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokens) ClearToken() error { return m.SetToken("") }

// tokenSource adapts a TokenStore to oauth2 so requests get their
// Authorization header from oauth2.Transport.
type tokenSource struct {
	store TokenStore
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	tok := s.store.Token()
	if tok == "" {
		return nil, errors.New("no bearer token")
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}
