package application

import (
	"fmt"
	"sync"

	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// ClientPool caches one GitHub client per access token so that each token
// keeps its own HTTP cache and rate limit bookkeeping across requests.
type ClientPool struct {
	mu      sync.RWMutex
	factory driven.GitHubClientFactory
	clients map[string]driven.GitHubClient
}

// NewClientPool creates an empty pool that builds clients with factory.
func NewClientPool(factory driven.GitHubClientFactory) *ClientPool {
	return &ClientPool{
		factory: factory,
		clients: make(map[string]driven.GitHubClient),
	}
}

// Get returns the client for token, creating it on first use.
func (p *ClientPool) Get(token string) (driven.GitHubClient, error) {
	p.mu.RLock()
	client, ok := p.clients[token]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[token]; ok {
		return client, nil
	}

	client, err := p.factory(token)
	if err != nil {
		return nil, fmt.Errorf("create github client: %w", err)
	}
	p.clients[token] = client
	return client, nil
}

// Evict drops the cached client for token. Used when a stored token is
// replaced or deleted.
func (p *ClientPool) Evict(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, token)
}

// Len returns the number of cached clients.
func (p *ClientPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
