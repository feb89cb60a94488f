package renderer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// Registry maps each platform to exactly one renderer.
// Registration normally happens at startup; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register binds a renderer to a platform. Each platform has one renderer and
// a renderer instance may serve only one platform.
func (r *Registry) Register(platform string, rend Renderer) error {
	if platform == "" {
		return fmt.Errorf("platform cannot be empty")
	}
	if rend == nil {
		return fmt.Errorf("renderer for platform %q cannot be nil", platform)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.renderers[platform]; exists {
		return fmt.Errorf("platform %q already has a renderer registered", platform)
	}
	for other, existing := range r.renderers {
		if existing == rend {
			return fmt.Errorf("renderer %q is already registered for platform %q", rend.Name(), other)
		}
	}

	r.renderers[platform] = rend
	return nil
}

// Get returns the renderer registered for a platform.
func (r *Registry) Get(platform string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rend, ok := r.renderers[platform]
	return rend, ok
}

// Resolve returns the platform's renderer if it supports the effect type.
// Returns an error wrapping ErrUnsupported otherwise, including for unknown platforms.
func (r *Registry) Resolve(platform string, t blackboard.EffectType) (Renderer, error) {
	rend, ok := r.Get(platform)
	if !ok {
		return nil, fmt.Errorf("no renderer for platform %q: %w", platform, ErrUnsupported)
	}
	if !rend.Supports(t) {
		return nil, fmt.Errorf("%s renderer cannot render %s effects: %w", platform, t, ErrUnsupported)
	}
	return rend, nil
}

// Platforms returns the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]string, 0, len(r.renderers))
	for p := range r.renderers {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}
