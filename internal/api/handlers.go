package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
)

// matchView is a persisted match with its display lines.
type matchView struct {
	model.Match
	Explanation []string `json:"explanation"`
}

func viewMatches(ms []model.Match) []matchView {
	out := make([]matchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchView{Match: m, Explanation: matcher.FormatReasons(m.Reasons)})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scoreRequest struct {
	Listing model.Listing `json:"listing"`
	Request model.Request `json:"request"`
}

type scoreResponse struct {
	Score       int           `json:"score"`
	Reasons     model.Reasons `json:"reasons"`
	Explanation []string      `json:"explanation"`
	Persistable bool          `json:"persistable"`
}

// handleScore scores one ad-hoc pair without touching the store.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sc := s.svc.Scorer()
	res, err := sc.Score(req.Listing, req.Request)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		Score:       res.Score,
		Reasons:     res.Reasons,
		Explanation: matcher.FormatReasons(res.Reasons),
		Persistable: res.Score >= sc.Config().MinScore,
	})
}

type listingResponse struct {
	Listing *model.Listing `json:"listing"`
	Matches []matchView    `json:"matches"`
}

type requestResponse struct {
	Request *model.Request `json:"request"`
	Matches []matchView    `json:"matches"`
}

type matchesResponse struct {
	Matches []matchView `json:"matches"`
}

// --- Listings ---

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var l model.Listing
	if !decodeBody(w, r, &l) {
		return
	}
	l.ID, l.Status = "", ""
	matches, err := s.svc.SubmitListing(r.Context(), &l)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse{Listing: &l, Matches: viewMatches(matches)})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var l model.Listing
	if !decodeBody(w, r, &l) {
		return
	}
	l.ID = chi.URLParam(r, "id")
	matches, err := s.svc.UpdateListing(r.Context(), &l)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse{Listing: &l, Matches: viewMatches(matches)})
}

func (s *Server) handleArchiveListing(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ArchiveListing(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRematchListing(w http.ResponseWriter, r *http.Request) {
	matches, err := s.svc.RematchListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{Matches: viewMatches(matches)})
}

func (s *Server) handleListingMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetListing(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.listMatches(w, r, model.SideListing, id)
}

// --- Requests ---

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID, req.Status = "", ""
	matches, err := s.svc.SubmitRequest(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, requestResponse{Request: &req, Matches: viewMatches(matches)})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	matches, err := s.svc.UpdateRequest(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requestResponse{Request: &req, Matches: viewMatches(matches)})
}

func (s *Server) handleArchiveRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ArchiveRequest(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRematchRequest(w http.ResponseWriter, r *http.Request) {
	matches, err := s.svc.RematchRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{Matches: viewMatches(matches)})
}

func (s *Server) handleRequestMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRequest(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.listMatches(w, r, model.SideRequest, id)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request, side model.Side, id string) {
	filter := store.MatchFilter{Side: side, EntityID: id}
	q := r.URL.Query()
	if v := q.Get("include_superseded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_superseded must be a boolean")
			return
		}
		filter.IncludeSuperseded = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	matches, err := s.store.ListMatches(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{Matches: viewMatches(matches)})
}
