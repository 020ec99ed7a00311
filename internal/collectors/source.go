package collectors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/models"
)

// Source is implemented by every listing adapter (static fixtures, Amazon, ...).
// Fetch returns normalized listings without ids or snapshot ids.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Listing, error)
}

// Factory builds a source from configuration.
type Factory func(cfg config.SourcesConfig) (Source, error)

// Registry maps source names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice replaces the earlier one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names lists registered source names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs one source by name. Unknown names are an error.
func (r *Registry) Build(name string, cfg config.SourcesConfig) (Source, error) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	src, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build source %s: %w", name, err)
	}
	return src, nil
}

// BuildAll constructs the named sources in order.
func (r *Registry) BuildAll(names []string, cfg config.SourcesConfig) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, name := range names {
		src, err := r.Build(name, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}
