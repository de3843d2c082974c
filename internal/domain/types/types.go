// Package types contains the enumerations shared across the engine.
package types

import (
	"strings"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

// RoundStatus is the lifecycle state of a round. Rounds only move forward.
type RoundStatus string

const (
	RoundPending    RoundStatus = "pending"
	RoundInProgress RoundStatus = "in_progress"
	RoundCompleted  RoundStatus = "completed"
)

// TimerStatus is the state of a round timer.
type TimerStatus string

const (
	TimerStopped TimerStatus = "stopped"
	TimerRunning TimerStatus = "running"
	TimerPaused  TimerStatus = "paused"
)

// Role is a pilot roster role or a drone/position role.
type Role string

const (
	RoleForward    Role = "Forward"
	RoleStriker    Role = "Striker"
	RoleDefender   Role = "Defender"
	RoleKeeper     Role = "Keeper"
	RoleSubstitute Role = "Substitute"
	RoleAllRounder Role = "All-rounder"
)

var roles = map[string]Role{
	"forward":     RoleForward,
	"striker":     RoleStriker,
	"defender":    RoleDefender,
	"keeper":      RoleKeeper,
	"substitute":  RoleSubstitute,
	"all-rounder": RoleAllRounder,
	"allrounder":  RoleAllRounder,
}

// ParseRole normalizes a role name; ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r, ok := roles[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

// Valid reports whether r is a known roster role.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Playable reports whether a drone or position can carry r.
func (r Role) Playable() bool {
	switch r {
	case RoleForward, RoleStriker, RoleDefender, RoleKeeper:
		return true
	}
	return false
}

// Team identifies one side of a match.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// ParseTeam accepts "A"/"B" in any case, and "teamA"/"teamB".
func ParseTeam(s string) (Team, bool) {
	switch strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "team")) {
	case "A":
		return TeamA, true
	case "B":
		return TeamB, true
	}
	return "", false
}

// Valid reports whether t is A or B.
func (t Team) Valid() bool { return t == TeamA || t == TeamB }

// Other returns the opposing side.
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// DroneColor returns the team colour implied by a drone id: R* drones fly
// for team A, B* drones for team B.
func DroneColor(droneID string) (Team, bool) {
	if droneID == "" {
		return "", false
	}
	switch strings.ToUpper(droneID[:1]) {
	case "R":
		return TeamA, true
	case "B":
		return TeamB, true
	}
	return "", false
}

// DeviceStatus is the liveness of an ESP device.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

// DeviceType is the ESP hardware flavour.
type DeviceType string

const (
	DeviceESP32Dev DeviceType = "ESP32-Dev"
	DeviceESP32Cam DeviceType = "ESP32-CAM"
)

// Valid reports whether d is a supported device type.
func (d DeviceType) Valid() bool { return d == DeviceESP32Dev || d == DeviceESP32Cam }

// Command is a batch hardware command.
type Command string

const (
	CommandStart Command = "START"
	CommandStop  Command = "STOP"
	CommandReset Command = "RESET"
)

// ParseCommand accepts start/stop/reset in any case.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(strings.ToUpper(strings.TrimSpace(s))); c {
	case CommandStart, CommandStop, CommandReset:
		return c, true
	}
	return "", false
}

// ReportStatus classifies a drone report.
type ReportStatus string

const (
	ReportAnalysed      ReportStatus = "analysed"
	ReportDisconnected  ReportStatus = "disconnected"
	ReportNotRegistered ReportStatus = "not_registered"
)

// MatchType is a tournament's best-of-N format.
type MatchType string

const (
	BestOf2 MatchType = "best_of_2"
	BestOf3 MatchType = "best_of_3"
)

// RegulationRounds returns how many rounds the format plays before any
// tiebreaker. Unknown formats fall back to two rounds.
func (m MatchType) RegulationRounds() int {
	if m == BestOf3 {
		return 3
	}
	return 2
}

// Valid reports whether m is a supported format.
func (m MatchType) Valid() bool { return m == BestOf2 || m == BestOf3 }
