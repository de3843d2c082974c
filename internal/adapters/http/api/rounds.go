package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

type scoreRequest struct {
	Team  string `json:"team"`
	Delta int    `json:"delta"`
}

type endRoundResponse struct {
	Match    matchResponse    `json:"match"`
	Analysis dispatch.Outcome `json:"analysis"`
}

// RoundHandler serves per-round routes.
type RoundHandler struct {
	deps    Rounds
	current CurrentMatch
}

// NewRoundHandler creates a new round handler. current resolves the
// isCurrentMatch flag of returned matches.
func NewRoundHandler(deps Rounds, current CurrentMatch) *RoundHandler {
	return &RoundHandler{deps: deps, current: current}
}

type roundOp func(ctx context.Context, matchID string, n int) (*model.Match, error)

// HandleRegisterDrones handles POST /api/matches/{id}/rounds/{n}/drones.
func (h *RoundHandler) HandleRegisterDrones(w http.ResponseWriter, r *http.Request) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	var lin lineup.Lineup
	if !decode(w, r, &lin, false) {
		return
	}
	m, err := h.deps.RegisterDrones(r.Context(), r.PathValue("id"), n, lin)
	h.respond(w, r, m, err)
}

// HandleStart handles POST /api/matches/{id}/rounds/{n}/start.
func (h *RoundHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.deps.StartRound)
}

// HandleEnd handles POST /api/matches/{id}/rounds/{n}/end. The round is
// completed even when analysis fails; the outcome says which.
func (h *RoundHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	m, out, err := h.deps.EndRound(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp, err := withCurrent(r.Context(), h.current, m)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endRoundResponse{Match: resp, Analysis: out})
}

// HandleTimerAction handles POST /api/matches/{id}/rounds/{n}/timer/{action}.
func (h *RoundHandler) HandleTimerAction(w http.ResponseWriter, r *http.Request) {
	var op roundOp
	switch action := r.PathValue("action"); action {
	case "start":
		op = h.deps.StartTimer
	case "pause":
		op = h.deps.PauseTimer
	case "resume":
		op = h.deps.ResumeTimer
	case "reset":
		op = h.deps.ResetTimer
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest,
			failure.Wrapf(ErrBadRequest, "unknown timer action %q", action))
		return
	}
	h.run(w, r, op)
}

// HandleTimerView handles GET /api/matches/{id}/rounds/{n}/timer.
func (h *RoundHandler) HandleTimerView(w http.ResponseWriter, r *http.Request) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	v, err := h.deps.TimerView(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleScore handles POST /api/matches/{id}/rounds/{n}/score.
func (h *RoundHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if !decode(w, r, &req, false) {
		return
	}
	team, ok := types.ParseTeam(req.Team)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			failure.Wrapf(ErrBadRequest, "team must be A or B, got %q", req.Team))
		return
	}
	m, err := h.deps.AdjustScore(r.Context(), r.PathValue("id"), n, team, req.Delta)
	h.respond(w, r, m, err)
}

// HandleRedispatch handles POST /api/matches/{id}/rounds/{n}/analysis.
func (h *RoundHandler) HandleRedispatch(w http.ResponseWriter, r *http.Request) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	out, err := h.deps.RedispatchAnalysis(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleReports handles GET /api/matches/{id}/reports[?round=].
func (h *RoundHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("round"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest,
				failure.Wrapf(ErrBadRequest, "round must be a positive integer, got %q", raw))
			return
		}
		n = v
	}
	reports, err := h.deps.ListReports(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if reports == nil {
		reports = []model.DroneReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleAnalysisHealth handles GET /api/analysis/health.
func (h *RoundHandler) HandleAnalysisHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.deps.AnalysisHealth(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (h *RoundHandler) run(w http.ResponseWriter, r *http.Request, op roundOp) {
	n, ok := roundNumber(w, r)
	if !ok {
		return
	}
	m, err := op(r.Context(), r.PathValue("id"), n)
	h.respond(w, r, m, err)
}

func (h *RoundHandler) respond(w http.ResponseWriter, r *http.Request, m *model.Match, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp, err := withCurrent(r.Context(), h.current, m)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
