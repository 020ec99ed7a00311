// Package amazon scrapes individual Amazon product pages.
package amazon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
)

const Name = "amazon"

const productURLKey = "product_url"

// Config lists the product pages to track. Names, when given, pairs up with
// URLs and replaces the scraped titles so listings group with other sources.
type Config struct {
	URLs      []string
	Names     []string
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
}

// FromConfig adapts the shared sources section.
func FromConfig(cfg config.SourcesConfig) Config {
	return Config{
		URLs:      cfg.AmazonURLs,
		Names:     cfg.AmazonNames,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout.Duration,
		Delay:     cfg.Delay.Duration,
	}
}

// Source fetches every configured product page on each Fetch.
type Source struct {
	cfg   Config
	names map[string]string // keyed by ASIN
}

// New validates cfg and builds a source.
func New(cfg Config) (*Source, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("amazon: no product urls configured")
	}
	if len(cfg.Names) > 0 && len(cfg.Names) != len(cfg.URLs) {
		return nil, fmt.Errorf("amazon: %d names for %d urls", len(cfg.Names), len(cfg.URLs))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	names := make(map[string]string)
	for i, u := range cfg.URLs {
		if i < len(cfg.Names) && cfg.Names[i] != "" {
			names[ExtractASIN(u)] = cfg.Names[i]
		}
	}
	return &Source{cfg: cfg, names: names}, nil
}

func (s *Source) Name() string { return Name }

// Fetch visits the product pages in order. Pages that fail to load, hit a
// robot check or lack a parseable title and price are logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]models.Listing, error) {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if s.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.cfg.Timeout)
	if s.cfg.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Delay:       s.cfg.Delay,
			RandomDelay: s.cfg.Delay,
		}); err != nil {
			return nil, fmt.Errorf("amazon: limit rule: %w", err)
		}
	}

	var out []models.Listing

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		logging.Debugf("[amazon] visiting %s", r.URL)
	})

	c.OnError(func(r *colly.Response, err error) {
		logging.Warnf("[amazon] fetch %s failed (status %d): %v", r.Request.Ctx.Get(productURLKey), r.StatusCode, err)
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.Ctx.Get(productURLKey)
		p, err := ParseProduct(e.DOM, pageURL)
		if err != nil {
			logging.Warnf("[amazon] skipping %s: %v", pageURL, err)
			return
		}
		name := p.Title
		if custom, ok := s.names[p.ASIN]; ok {
			logging.Debugf("[amazon] using custom name %q for %s", custom, p.ASIN)
			name = custom
		}
		out = append(out, models.Listing{
			Source: Name,
			Name:   name,
			Price:  p.Price,
			URL:    pageURL,
		})
	})

	for _, u := range s.cfg.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cctx := colly.NewContext()
		cctx.Put(productURLKey, u)
		if err := c.Request("GET", u, nil, cctx, nil); err != nil {
			logging.Warnf("[amazon] request %s: %v", u, err)
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logging.Infof("[amazon] scraped %d of %d products", len(out), len(s.cfg.URLs))
	return out, nil
}
