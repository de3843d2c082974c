package api

import (
	"net/http"

	"github.com/okian/dronesoccer/internal/domain/model"
)

// ReferenceHandler serves tournaments, teams and the drone catalog.
type ReferenceHandler struct {
	deps ReferenceData
}

// NewReferenceHandler creates a new reference data handler.
func NewReferenceHandler(deps ReferenceData) *ReferenceHandler {
	return &ReferenceHandler{deps: deps}
}

// HandlePutTournament handles PUT /api/tournaments/{id}.
func (h *ReferenceHandler) HandlePutTournament(w http.ResponseWriter, r *http.Request) {
	var t model.Tournament
	if !decode(w, r, &t, false) {
		return
	}
	t.ID = r.PathValue("id")
	out, err := h.deps.PutTournament(r.Context(), t)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetTournament handles GET /api/tournaments/{id}.
func (h *ReferenceHandler) HandleGetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.GetTournament(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandlePutTeam handles PUT /api/teams/{id}.
func (h *ReferenceHandler) HandlePutTeam(w http.ResponseWriter, r *http.Request) {
	var t model.Team
	if !decode(w, r, &t, false) {
		return
	}
	t.ID = r.PathValue("id")
	out, err := h.deps.PutTeam(r.Context(), t)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetTeam handles GET /api/teams/{id}.
func (h *ReferenceHandler) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandlePutDrone handles PUT /api/drones/{droneId}.
func (h *ReferenceHandler) HandlePutDrone(w http.ResponseWriter, r *http.Request) {
	var d model.Drone
	if !decode(w, r, &d, false) {
		return
	}
	d.DroneID = r.PathValue("droneId")
	out, err := h.deps.PutDrone(r.Context(), d)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetDrone handles GET /api/drones/{droneId}.
func (h *ReferenceHandler) HandleGetDrone(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.GetDrone(r.Context(), r.PathValue("droneId"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleListDrones handles GET /api/drones.
func (h *ReferenceHandler) HandleListDrones(w http.ResponseWriter, r *http.Request) {
	ds, err := h.deps.ListDrones(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if ds == nil {
		ds = []model.Drone{}
	}
	writeJSON(w, http.StatusOK, ds)
}
