package overpass

import (
	"fmt"
	"sync"
)

// EndpointPool is an ordered list of interchangeable mirrors with a shared cursor.
// The cursor survives across segments so a failover sticks for the rest of the run.
type EndpointPool struct {
	mu        sync.Mutex
	endpoints []string
	current   int
}

// NewEndpointPool creates a pool starting at the first endpoint
func NewEndpointPool(endpoints []string) (*EndpointPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("endpoint pool needs at least one endpoint")
	}
	return &EndpointPool{endpoints: append([]string(nil), endpoints...)}, nil
}

// Current returns the endpoint the next request should go to
func (p *EndpointPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current]
}

// Advance moves the cursor to the next endpoint, wrapping around, and returns it
func (p *EndpointPool) Advance() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.endpoints)
	return p.endpoints[p.current]
}

// Endpoints returns a copy of the configured endpoints
func (p *EndpointPool) Endpoints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.endpoints...)
}

// Len returns the number of endpoints
func (p *EndpointPool) Len() int {
	return len(p.endpoints)
}
