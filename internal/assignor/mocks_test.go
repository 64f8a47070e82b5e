package assignor

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockClaimsWriter implements ClaimsWriter
type MockClaimsWriter struct {
	mock.Mock
}

func (m *MockClaimsWriter) GrantAdmin(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

// memoryClaims is a replace-semantics claims store keyed by uid
type memoryClaims struct {
	mu     sync.Mutex
	claims map[string]map[string]any
	writes int
}

func newMemoryClaims() *memoryClaims {
	return &memoryClaims{claims: make(map[string]map[string]any)}
}

func (m *memoryClaims) GrantAdmin(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[uid] = map[string]any{"admin": true}
	m.writes++
	return nil
}

func (m *memoryClaims) get(uid string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[uid]
	return c, ok
}
