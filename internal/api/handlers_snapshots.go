package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/service"
)

const (
	defaultSnapshotLimit = 10
	maxSnapshotLimit     = 100
	defaultItemLimit     = 50
	maxItemLimit         = 1000
)

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultSnapshotLimit, 1, maxSnapshotLimit)
	if err != nil {
		respondServiceError(w, "retrieving snapshots", err)
		return
	}
	snaps, err := s.tracker.Snapshots(r.Context(), limit)
	if err != nil {
		respondServiceError(w, "retrieving snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.tracker.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, "retrieving snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.tracker.DeleteSnapshot(r.Context(), id); err != nil {
		respondServiceError(w, "deleting snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// GET /items?snapshot_id=&source=&limit=50
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultItemLimit, 1, maxItemLimit)
	if err != nil {
		respondServiceError(w, "retrieving items", err)
		return
	}
	q := r.URL.Query()
	_, items, err := s.tracker.Items(r.Context(), service.ItemsRequest{
		SnapshotID: q.Get("snapshot_id"),
		Source:     q.Get("source"),
		Limit:      limit,
	})
	if err != nil {
		respondServiceError(w, "retrieving items", err)
		return
	}
	if items == nil {
		items = []models.Listing{}
	}
	respondJSON(w, http.StatusOK, items)
}
