package optimistic

import "sync"

// Registry holds one Gate per written path, created on first use
type Registry struct {
	opts []Option

	mu    sync.Mutex
	gates map[string]*Gate
}

// NewRegistry creates a registry whose gates share opts
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:  opts,
		gates: make(map[string]*Gate),
	}
}

// Gate returns the gate of path, creating it when needed
func (r *Registry) Gate(path string) *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.gates[path]
	if !ok {
		g = NewGate(path, r.opts...)
		r.gates[path] = g
	}
	return g
}

// Display returns the displayed value of path. Paths never written display
// the observed value.
func (r *Registry) Display(path string, observed any) any {
	r.mu.Lock()
	g, ok := r.gates[path]
	r.mu.Unlock()

	if !ok {
		return observed
	}
	return g.Display(observed)
}

// Pending returns the pending command of every path that has one
func (r *Registry) Pending() map[string]PendingCommand {
	r.mu.Lock()
	gates := make(map[string]*Gate, len(r.gates))
	for path, g := range r.gates {
		gates[path] = g
	}
	r.mu.Unlock()

	out := make(map[string]PendingCommand)
	for path, g := range gates {
		if cmd, ok := g.Pending(); ok {
			out[path] = cmd
		}
	}
	return out
}
