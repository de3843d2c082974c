// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	service "github.com/okian/dronesoccer/internal/app"
	"github.com/okian/dronesoccer/internal/domain/devices"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/timer"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// maxBodyBytes caps request bodies; telemetry batches are the largest.
const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the orchestrator.
type Dependencies interface {
	ReferenceData
	Matches
	Rounds
	Devices
	Ready(ctx context.Context) error
	IngestTelemetry(ctx context.Context, b model.TelemetryBatch) (service.TelemetryAck, error)
}

// ReferenceData is the admin surface over tournaments, teams and drones.
type ReferenceData interface {
	PutTournament(ctx context.Context, t model.Tournament) (model.Tournament, error)
	GetTournament(ctx context.Context, id string) (model.Tournament, error)
	PutTeam(ctx context.Context, t model.Team) (model.Team, error)
	GetTeam(ctx context.Context, id string) (model.Team, error)
	PutDrone(ctx context.Context, d model.Drone) (model.Drone, error)
	GetDrone(ctx context.Context, droneID string) (model.Drone, error)
	ListDrones(ctx context.Context) ([]model.Drone, error)
}

// CurrentMatch reads the current-match pointer.
type CurrentMatch interface {
	CurrentMatchID(ctx context.Context) (string, error)
}

// Matches covers match lifecycle and the current-match pointer.
type Matches interface {
	CurrentMatch
	CreateMatch(ctx context.Context, in service.CreateMatchInput) (*model.Match, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	ListMatches(ctx context.Context, tournamentID string) ([]*model.Match, error)
	DeleteMatch(ctx context.Context, id string) error
	GetCurrentMatch(ctx context.Context) (*model.Match, error)
	SetCurrentMatch(ctx context.Context, id string) (*model.Match, error)
	CompleteMatch(ctx context.Context, id string) (*model.Match, error)
	SetManOfTheMatch(ctx context.Context, id string, mom model.ManOfTheMatch) (*model.Match, error)
	SendCommand(ctx context.Context, matchID string, cmd types.Command) (service.CommandResult, error)
}

// Rounds covers per-round operations and analysis.
type Rounds interface {
	RegisterDrones(ctx context.Context, matchID string, n int, lin lineup.Lineup) (*model.Match, error)
	StartRound(ctx context.Context, matchID string, n int) (*model.Match, error)
	EndRound(ctx context.Context, matchID string, n int) (*model.Match, dispatch.Outcome, error)
	StartTimer(ctx context.Context, matchID string, n int) (*model.Match, error)
	PauseTimer(ctx context.Context, matchID string, n int) (*model.Match, error)
	ResumeTimer(ctx context.Context, matchID string, n int) (*model.Match, error)
	ResetTimer(ctx context.Context, matchID string, n int) (*model.Match, error)
	AdjustScore(ctx context.Context, matchID string, n int, team types.Team, delta int) (*model.Match, error)
	TimerView(ctx context.Context, matchID string, n int) (timer.View, error)
	RedispatchAnalysis(ctx context.Context, matchID string, n int) (dispatch.Outcome, error)
	ListReports(ctx context.Context, matchID string, n int) ([]model.DroneReport, error)
	AnalysisHealth(ctx context.Context) (dispatch.Health, error)
}

// Devices covers the ESP device registry.
type Devices interface {
	RegisterDevice(ctx context.Context, in devices.Registration) (model.ESPDevice, error)
	UpdateDevice(ctx context.Context, mac string, patch devices.Patch) (model.ESPDevice, error)
	DeleteDevice(ctx context.Context, mac string) error
	GetDevice(ctx context.Context, mac string) (model.ESPDevice, error)
	ListDevices(ctx context.Context, status types.DeviceStatus) ([]model.ESPDevice, error)
	Heartbeat(ctx context.Context, mac, ip string) (model.ESPDevice, error)
	Announce(ctx context.Context, mac, ip string) (devices.Announcement, error)
	SweepOffline(ctx context.Context, threshold time.Duration) (int, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	referenceHandler *ReferenceHandler
	matchHandler     *MatchHandler
	roundHandler     *RoundHandler
	deviceHandler    *DeviceHandler
	telemetryHandler *TelemetryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		statsHandler:     NewStatsHandler(statsProvider),
		referenceHandler: NewReferenceHandler(deps),
		matchHandler:     NewMatchHandler(deps),
		roundHandler:     NewRoundHandler(deps, deps),
		deviceHandler:    NewDeviceHandler(deps),
		telemetryHandler: NewTelemetryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	ref := s.referenceHandler
	route("PUT /api/tournaments/{id}", "tournament", ref.HandlePutTournament)
	route("GET /api/tournaments/{id}", "tournament", ref.HandleGetTournament)
	route("PUT /api/teams/{id}", "team", ref.HandlePutTeam)
	route("GET /api/teams/{id}", "team", ref.HandleGetTeam)
	route("PUT /api/drones/{droneId}", "drone", ref.HandlePutDrone)
	route("GET /api/drones/{droneId}", "drone", ref.HandleGetDrone)
	route("GET /api/drones", "drones", ref.HandleListDrones)

	m := s.matchHandler
	route("POST /api/matches", "matches", m.HandleCreate)
	route("GET /api/matches", "matches", m.HandleList)
	route("GET /api/matches/current", "current_match", m.HandleGetCurrent)
	route("GET /api/matches/{id}", "match", m.HandleGet)
	route("DELETE /api/matches/{id}", "match", m.HandleDelete)
	route("PUT /api/matches/{id}/current", "current_match", m.HandleSetCurrent)
	route("POST /api/matches/{id}/complete", "complete_match", m.HandleComplete)
	route("PUT /api/matches/{id}/man-of-the-match", "man_of_the_match", m.HandleManOfTheMatch)
	route("POST /api/matches/{id}/drones/{command}", "hardware_command", m.HandleCommand)

	r := s.roundHandler
	route("POST /api/matches/{id}/rounds/{n}/drones", "register_drones", r.HandleRegisterDrones)
	route("POST /api/matches/{id}/rounds/{n}/start", "start_round", r.HandleStart)
	route("POST /api/matches/{id}/rounds/{n}/end", "end_round", r.HandleEnd)
	route("POST /api/matches/{id}/rounds/{n}/timer/{action}", "timer", r.HandleTimerAction)
	route("GET /api/matches/{id}/rounds/{n}/timer", "timer_view", r.HandleTimerView)
	route("POST /api/matches/{id}/rounds/{n}/score", "score", r.HandleScore)
	route("POST /api/matches/{id}/rounds/{n}/analysis", "analysis", r.HandleRedispatch)
	route("GET /api/matches/{id}/reports", "reports", r.HandleReports)
	route("GET /api/analysis/health", "analysis_health", r.HandleAnalysisHealth)

	d := s.deviceHandler
	route("GET /api/devices", "devices", d.HandleList)
	route("POST /api/devices", "devices", d.HandleRegister)
	route("POST /api/devices/announce", "announce", d.HandleAnnounce)
	route("POST /api/devices/heartbeat", "heartbeat", d.HandleHeartbeat)
	route("POST /api/devices/sweep", "sweep", d.HandleSweep)
	route("GET /api/devices/{mac}", "device", d.HandleGet)
	route("PUT /api/devices/{mac}", "device", d.HandleUpdate)
	route("DELETE /api/devices/{mac}", "device", d.HandleDelete)

	route("POST /api/telemetry", "telemetry", s.telemetryHandler.HandlePost)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an error's kind to a status code.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch failure.KindOf(err) {
	case failure.Validation:
		status = http.StatusBadRequest
	case failure.NotFound:
		status = http.StatusNotFound
	case failure.Conflict:
		status = http.StatusConflict
	case failure.Unavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, failure.CodeOf(err), err)
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, failure.Wrapf(ErrBadRequest, "invalid JSON body: %v", err))
		return false
	}
	return true
}

// roundNumber parses the {n} path segment.
func roundNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			failure.Wrapf(ErrBadRequest, "round number must be a positive integer, got %q", r.PathValue("n")))
		return 0, false
	}
	return n, true
}
