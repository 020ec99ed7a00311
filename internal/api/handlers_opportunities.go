package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/service"
)

const (
	defaultOpportunityLimit = 50
	maxOpportunityLimit     = 1000
)

// OpportunityResponse is returned by GET /opportunities and POST /detect.
type OpportunityResponse struct {
	Opportunities    []models.Opportunity `json:"opportunities"`
	Count            int                  `json:"count"`
	SnapshotID       string               `json:"snapshot_id,omitempty"`
	MinProfitPercent *decimal.Decimal     `json:"min_profit_percent,omitempty"`
	MinProfitAmount  *decimal.Decimal     `json:"min_profit_amount,omitempty"`
}

func newOpportunityResponse(opps []models.Opportunity, snapshotID string, pct, amt *decimal.Decimal) OpportunityResponse {
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return OpportunityResponse{
		Opportunities:    opps,
		Count:            len(opps),
		SnapshotID:       snapshotID,
		MinProfitPercent: pct,
		MinProfitAmount:  amt,
	}
}

// GET /opportunities?snapshot_id=&latest=true&days=&min_profit_percent=&min_profit_amount=&limit=50
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latest, err := boolParam(r, "latest", true)
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}
	days, err := optionalIntParam(r, "days", 1)
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}
	pct, err := decimalParam(r, "min_profit_percent")
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}
	amt, err := decimalParam(r, "min_profit_amount")
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}
	limit, err := intParam(r, "limit", defaultOpportunityLimit, 1, maxOpportunityLimit)
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}

	snapshotID := q.Get("snapshot_id")
	if snapshotID == "" && !latest && days == nil {
		respondJSON(w, http.StatusOK, newOpportunityResponse(nil, "", pct, amt))
		return
	}
	req := service.HistoryRequest{
		SnapshotID:       snapshotID,
		Latest:           latest,
		MinProfitPercent: pct,
		MinProfitAmount:  amt,
		Limit:            limit,
	}
	if days != nil {
		req.Days = *days
	}
	res, err := s.tracker.History(r.Context(), req)
	if err != nil {
		respondServiceError(w, "retrieving opportunities", err)
		return
	}
	respondJSON(w, http.StatusOK, newOpportunityResponse(res.Opportunities, res.SnapshotID, pct, amt))
}

// DetectRequest is the body of POST /detect. Items, when present, are
// analysed alongside any stored listings and are never saved.
type DetectRequest struct {
	SnapshotID       string           `json:"snapshot_id,omitempty"`
	UseLatest        *bool            `json:"use_latest,omitempty"`
	Days             *int             `json:"days,omitempty"`
	MinProfitPercent *decimal.Decimal `json:"min_profit_percent,omitempty"`
	MinProfitAmount  *decimal.Decimal `json:"min_profit_amount,omitempty"`
	Limit            int              `json:"limit,omitempty"`
	Items            []models.Record  `json:"items,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var body DetectRequest
	if err := parseJSONBody(r, &body); err != nil {
		respondServiceError(w, "detecting opportunities", err)
		return
	}
	if err := body.validate(); err != nil {
		respondServiceError(w, "detecting opportunities", err)
		return
	}
	listings, err := arb.ListingsFromRecords(body.Items)
	if err != nil {
		respondServiceError(w, "detecting opportunities", err)
		return
	}

	latest := body.SnapshotID == "" && len(body.Items) == 0 && body.Days == nil
	if body.UseLatest != nil {
		latest = *body.UseLatest
	}
	req := service.DetectRequest{
		SnapshotID:       body.SnapshotID,
		Latest:           latest,
		Listings:         listings,
		MinProfitPercent: body.MinProfitPercent,
		Save:             len(listings) == 0 && (body.SnapshotID != "" || latest),
	}
	if body.Days != nil {
		req.Since = time.Duration(*body.Days) * 24 * time.Hour
	}

	res, err := s.tracker.Detect(r.Context(), req)
	if err != nil {
		respondServiceError(w, "detecting opportunities", err)
		return
	}

	opps := make([]models.Opportunity, 0, len(res.Opportunities))
	for _, o := range res.Opportunities {
		if body.MinProfitAmount != nil && o.ProfitAmount.LessThan(*body.MinProfitAmount) {
			continue
		}
		opps = append(opps, o)
	}
	limit := body.Limit
	if limit == 0 {
		limit = defaultOpportunityLimit
	}
	if len(opps) > limit {
		opps = opps[:limit]
	}
	respondJSON(w, http.StatusOK, newOpportunityResponse(opps, res.SnapshotID, body.MinProfitPercent, body.MinProfitAmount))
}

func (b DetectRequest) validate() error {
	switch {
	case b.MinProfitPercent != nil && b.MinProfitPercent.IsNegative():
		return fmt.Errorf("%w: min_profit_percent must be >= 0", errBadRequest)
	case b.MinProfitAmount != nil && b.MinProfitAmount.IsNegative():
		return fmt.Errorf("%w: min_profit_amount must be >= 0", errBadRequest)
	case b.Days != nil && *b.Days < 1:
		return fmt.Errorf("%w: days must be >= 1", errBadRequest)
	case b.Limit < 0 || b.Limit > maxOpportunityLimit:
		return fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxOpportunityLimit)
	}
	return nil
}
