package model

import (
	"time"

	"github.com/okian/dronesoccer/internal/domain/types"
)

// DroneMetrics carries the telemetry-derived figures of an analysed drone.
type DroneMetrics struct {
	Variance   map[string]float64 `json:"variance,omitempty"`
	Smoothness map[string]float64 `json:"smoothness,omitempty"`
	Spikes     map[string]int     `json:"spikes,omitempty"`
	DataPoints int                `json:"dataPoints"`
}

// DroneReport is the per-drone outcome of a round's analysis. A round's
// reports are written together and replaced together.
type DroneReport struct {
	ID             string             `json:"id"`
	MatchID        string             `json:"matchId"`
	RoundNumber    int                `json:"roundNumber"`
	DroneID        string             `json:"droneId"`
	Team           types.Team         `json:"team"`
	TeamID         string             `json:"teamId"`
	Pilot          string             `json:"pilot"`
	Role           types.Role         `json:"role"`
	Status         types.ReportStatus `json:"status"`
	StabilityScore float64            `json:"stabilityScore"`
	Classification string             `json:"classification,omitempty"`
	Grade          string             `json:"grade,omitempty"`
	Issues         []string           `json:"issues,omitempty"`
	Hints          []string           `json:"hints,omitempty"`
	Metrics        DroneMetrics       `json:"metrics"`
	TeamAverage    float64            `json:"teamAverage,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}
