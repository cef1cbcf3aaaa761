package resilience

import "sort"

// Breakers is a fixed set of named breakers sharing one config.
type Breakers struct {
	byName map[string]*CircuitBreaker
}

// NewBreakers creates one breaker per name.
func NewBreakers(cfg BreakerConfig, names ...string) *Breakers {
	b := &Breakers{byName: make(map[string]*CircuitBreaker, len(names))}
	for _, n := range names {
		b.byName[n] = NewCircuitBreaker(n, cfg)
	}
	return b
}

// Get returns the named breaker, or nil when it was not registered.
func (b *Breakers) Get(name string) *CircuitBreaker {
	return b.byName[name]
}

// States returns every breaker's effective state keyed by name.
func (b *Breakers) States() map[string]CircuitState {
	out := make(map[string]CircuitState, len(b.byName))
	for n, cb := range b.byName {
		out[n] = cb.State()
	}
	return out
}

// Names returns the registered names in sorted order.
func (b *Breakers) Names() []string {
	names := make([]string, 0, len(b.byName))
	for n := range b.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
