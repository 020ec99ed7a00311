package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/sources/amazon"
	"github.com/hetulpatel/pricearb/internal/sources/static"
)

// ScrapeRequest is the body of POST /scrape.
type ScrapeRequest struct {
	AmazonURLs    []string `json:"amazon_urls,omitempty"`
	AmazonNames   []string `json:"amazon_names,omitempty"`
	IncludeStatic *bool    `json:"include_static,omitempty"`
	SnapshotName  string   `json:"snapshot_name,omitempty"`
}

func (r ScrapeRequest) includeStatic() bool {
	return r.IncludeStatic == nil || *r.IncludeStatic
}

// ScrapeResponse reports the stored snapshot.
type ScrapeResponse struct {
	Success    bool             `json:"success"`
	SnapshotID string           `json:"snapshot_id,omitempty"`
	ItemCount  int              `json:"item_count"`
	Items      []models.Listing `json:"items"`
	Message    string           `json:"message"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, "scraping", err)
		return
	}
	if len(req.AmazonNames) > 0 && len(req.AmazonNames) != len(req.AmazonURLs) {
		respondError(w, http.StatusBadRequest, "Number of Amazon names must match number of URLs")
		return
	}

	srcs, err := s.buildSources(req)
	if err != nil {
		respondServiceError(w, "scraping", err)
		return
	}
	if len(srcs) == 0 {
		respondError(w, http.StatusNotFound, "No products found to scrape")
		return
	}

	res, err := s.tracker.Capture(r.Context(), req.SnapshotName, srcs)
	if err != nil {
		respondServiceError(w, "during scraping", err)
		return
	}
	respondJSON(w, http.StatusOK, ScrapeResponse{
		Success:    true,
		SnapshotID: res.Snapshot.ID,
		ItemCount:  len(res.Listings),
		Items:      res.Listings,
		Message:    fmt.Sprintf("Successfully scraped %d products", len(res.Listings)),
	})
}

func (s *Server) scrapeSources(req ScrapeRequest) ([]collectors.Source, error) {
	var out []collectors.Source
	if len(req.AmazonURLs) > 0 {
		for _, u := range req.AmazonURLs {
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				return nil, fmt.Errorf("%w: invalid url %q", errBadRequest, u)
			}
		}
		cfg := amazon.FromConfig(s.sources)
		cfg.URLs = req.AmazonURLs
		cfg.Names = req.AmazonNames
		src, err := amazon.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		out = append(out, src)
	}
	if req.includeStatic() {
		out = append(out, static.New(s.sources.StaticName))
	}
	return out, nil
}
