// Package repository defines the persistence contracts of the engine and an
// in-memory implementation. Lookups return a found flag instead of an error
// for missing rows.
package repository

import (
	"context"

	"github.com/okian/dronesoccer/internal/domain/model"
)

// TournamentStore holds tournaments and their settings.
type TournamentStore interface {
	PutTournament(ctx context.Context, t model.Tournament) error
	GetTournament(ctx context.Context, id string) (model.Tournament, bool, error)
}

// TeamStore holds team rosters.
type TeamStore interface {
	PutTeam(ctx context.Context, t model.Team) error
	GetTeam(ctx context.Context, id string) (model.Team, bool, error)
}

// DroneStore is the drone catalog.
type DroneStore interface {
	PutDrone(ctx context.Context, d model.Drone) error
	GetDrone(ctx context.Context, droneID string) (model.Drone, bool, error)
	// ListDrones returns drones ordered by id.
	ListDrones(ctx context.Context) ([]model.Drone, error)
}

// MatchStore holds match aggregates. Stored matches are copies; callers
// never share a *model.Match with the store.
type MatchStore interface {
	PutMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, bool, error)
	// ListMatches returns matches ordered by creation time. An empty
	// tournamentID lists every match.
	ListMatches(ctx context.Context, tournamentID string) ([]*model.Match, error)
	DeleteMatch(ctx context.Context, id string) (bool, error)
}

// CurrentMatchStore is the single system-wide current match pointer.
type CurrentMatchStore interface {
	// CurrentMatch returns the current match id, or "" when none is set.
	CurrentMatch(ctx context.Context) (string, error)
	// SwapCurrentMatch points at id and returns the previous id. An empty
	// id clears the pointer.
	SwapCurrentMatch(ctx context.Context, id string) (string, error)
}

// DeviceStore holds ESP devices keyed by upper-case MAC address.
type DeviceStore interface {
	GetDevice(ctx context.Context, mac string) (model.ESPDevice, bool, error)
	DeviceByDrone(ctx context.Context, droneID string) (model.ESPDevice, bool, error)
	// ListDevices returns devices ordered by drone id.
	ListDevices(ctx context.Context) ([]model.ESPDevice, error)
	PutDevice(ctx context.Context, d model.ESPDevice) error
	DeleteDevice(ctx context.Context, mac string) (bool, error)
}

// ReportStore holds drone reports.
type ReportStore interface {
	// ReplaceReports atomically swaps every report of a round for reports.
	ReplaceReports(ctx context.Context, matchID string, round int, reports []model.DroneReport) error
	// ListReports returns a match's reports ordered by round then drone. A
	// round of zero lists every round.
	ListReports(ctx context.Context, matchID string, round int) ([]model.DroneReport, error)
	DeleteReports(ctx context.Context, matchID string) error
}

// TelemetryStore holds raw telemetry samples per match round and drone.
type TelemetryStore interface {
	AppendTelemetry(ctx context.Context, b model.TelemetryBatch) error
	// RoundTelemetry returns samples keyed by drone id, in arrival order.
	RoundTelemetry(ctx context.Context, matchID string, round int) (map[string][]model.TelemetrySample, error)
	DeleteTelemetry(ctx context.Context, matchID string) error
}

// Store is every contract the engine persists through.
type Store interface {
	TournamentStore
	TeamStore
	DroneStore
	MatchStore
	CurrentMatchStore
	DeviceStore
	ReportStore
	TelemetryStore

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
	Close() error
}
