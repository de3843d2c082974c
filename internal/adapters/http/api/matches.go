package api

import (
	"context"
	"net/http"

	service "github.com/okian/dronesoccer/internal/app"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// matchResponse is a match as displays see it.
type matchResponse struct {
	*model.Match
	IsCurrentMatch bool `json:"isCurrentMatch"`
}

// MatchHandler serves match lifecycle routes.
type MatchHandler struct {
	deps Matches
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps Matches) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleCreate handles POST /api/matches.
func (h *MatchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateMatchInput
	if !decode(w, r, &in, false) {
		return
	}
	m, err := h.deps.CreateMatch(r.Context(), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, matchResponse{Match: m})
}

// HandleList handles GET /api/matches[?tournamentId=].
func (h *MatchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ms, err := h.deps.ListMatches(r.Context(), r.URL.Query().Get("tournamentId"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	current, err := h.deps.CurrentMatchID(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]matchResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchResponse{Match: m, IsCurrentMatch: m.ID == current})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/matches/{id}.
func (h *MatchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.GetMatch(r.Context(), r.PathValue("id"))
	h.respond(w, r, m, err)
}

// HandleGetCurrent handles GET /api/matches/current.
func (h *MatchHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.GetCurrentMatch(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: m, IsCurrentMatch: true})
}

// HandleDelete handles DELETE /api/matches/{id}.
func (h *MatchHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteMatch(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCurrent handles PUT /api/matches/{id}/current.
func (h *MatchHandler) HandleSetCurrent(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.SetCurrentMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: m, IsCurrentMatch: true})
}

// HandleComplete handles POST /api/matches/{id}/complete.
func (h *MatchHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.CompleteMatch(r.Context(), r.PathValue("id"))
	h.respond(w, r, m, err)
}

// HandleManOfTheMatch handles PUT /api/matches/{id}/man-of-the-match.
func (h *MatchHandler) HandleManOfTheMatch(w http.ResponseWriter, r *http.Request) {
	var mom model.ManOfTheMatch
	if !decode(w, r, &mom, false) {
		return
	}
	m, err := h.deps.SetManOfTheMatch(r.Context(), r.PathValue("id"), mom)
	h.respond(w, r, m, err)
}

// HandleCommand handles POST /api/matches/{id}/drones/{command}. The
// command is only queued; 202 says nothing about delivery.
func (h *MatchHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.SendCommand(r.Context(), r.PathValue("id"), types.Command(r.PathValue("command")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, m *model.Match, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp, err := withCurrent(r.Context(), h.deps, m)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func withCurrent(ctx context.Context, deps CurrentMatch, m *model.Match) (matchResponse, error) {
	current, err := deps.CurrentMatchID(ctx)
	if err != nil {
		return matchResponse{}, err
	}
	return matchResponse{Match: m, IsCurrentMatch: m.ID == current}, nil
}
