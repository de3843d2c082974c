package dispatch

import "github.com/okian/dronesoccer/internal/domain/model"

// DronePayload is one drone's telemetry as the analysis service reads it.
type DronePayload struct {
	DroneID string                  `json:"drone_id"`
	Logs    []model.TelemetrySample `json:"logs"`
}

// TeamPayload is the body of POST /analyze and one entry of a batch.
type TeamPayload struct {
	MatchID string         `json:"match_id"`
	TeamID  string         `json:"team_id"`
	RoundNo int            `json:"round_no"`
	Drones  []DronePayload `json:"drones"`
}

// BatchPayload is the body of POST /batch-analyze.
type BatchPayload struct {
	MatchID string        `json:"match_id"`
	Teams   []TeamPayload `json:"teams"`
}

// DroneResult is the service's verdict on one drone.
type DroneResult struct {
	DroneID        string             `json:"drone_id"`
	StabilityScore float64            `json:"stability_score"`
	Classification string             `json:"classification"`
	Issues         []string           `json:"issues_detected"`
	Variance       map[string]float64 `json:"variance_data"`
	Smoothness     map[string]float64 `json:"smoothness_scores"`
	Spikes         map[string]int     `json:"spike_counts"`
	DataPoints     int                `json:"data_points"`
}

// TeamResult is the answer to one team's analysis.
type TeamResult struct {
	TeamID      string        `json:"team_id"`
	Drones      []DroneResult `json:"drones"`
	TeamAverage float64       `json:"team_avg_stability"`
}

// BatchResult is the answer to POST /batch-analyze.
type BatchResult struct {
	Success bool         `json:"success"`
	MatchID string       `json:"match_id"`
	Results []TeamResult `json:"results"`
}

// Health is the service's liveness payload.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
}
