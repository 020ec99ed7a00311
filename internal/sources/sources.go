// Package sources wires the built-in listing adapters into a collector registry.
package sources

import (
	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/sources/amazon"
	"github.com/hetulpatel/pricearb/internal/sources/static"
)

// Registry returns a registry with every built-in source.
func Registry() *collectors.Registry {
	r := collectors.NewRegistry()
	r.Register(static.DefaultName, func(cfg config.SourcesConfig) (collectors.Source, error) {
		return static.New(cfg.StaticName), nil
	})
	r.Register(amazon.Name, func(cfg config.SourcesConfig) (collectors.Source, error) {
		src, err := amazon.New(amazon.FromConfig(cfg))
		if err != nil {
			return nil, err
		}
		return src, nil
	})
	return r
}

// Build constructs the sources enabled in cfg.
func Build(cfg config.SourcesConfig) ([]collectors.Source, error) {
	return Registry().BuildAll(cfg.Enabled, cfg)
}
