package pool

import (
	"sync"

	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/proxy"
)

// Pool keeps the public proxies fetched at startup. Selection hands out an
// endpoint without removing it; the list is never refreshed.
type Pool struct {
	proxies []*proxy.Endpoint
	seen    map[string]struct{}
	mu      sync.RWMutex
}

func NewPool() *Pool {
	return &Pool{
		seen: make(map[string]struct{}),
	}
}

// Add stores p unless an endpoint with the same address is already present.
func (p *Pool) Add(ep *proxy.Endpoint) bool {
	if ep == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := ep.String()
	if _, exists := p.seen[key]; exists {
		return false
	}
	p.seen[key] = struct{}{}
	p.proxies = append(p.proxies, ep)
	return true
}

// AddAll stores every endpoint and returns how many were new.
func (p *Pool) AddAll(eps []*proxy.Endpoint) int {
	added := 0
	for _, ep := range eps {
		if p.Add(ep) {
			added++
		}
	}
	return added
}

// Random picks an endpoint uniformly. It returns nil for an empty or nil pool.
func (p *Pool) Random(r clock.Rand) *proxy.Endpoint {
	if p == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.proxies) == 0 {
		return nil
	}
	return p.proxies[r.IntN(len(p.proxies))]
}

func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.proxies)
}
