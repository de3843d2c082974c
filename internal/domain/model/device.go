package model

import (
	"time"

	"github.com/okian/dronesoccer/internal/domain/types"
)

// ESPDevice is a physical controller bound to a drone slot.
type ESPDevice struct {
	MACAddress      string             `json:"macAddress"`
	DroneID         string             `json:"droneId"`
	Role            types.Role         `json:"role"`
	Nickname        string             `json:"nickname"`
	DeviceType      types.DeviceType   `json:"deviceType"`
	FirmwareVersion string             `json:"firmwareVersion,omitempty"`
	IsActive        bool               `json:"isActive"`
	Status          types.DeviceStatus `json:"status"`
	LastSeen        time.Time          `json:"lastSeen"`
	IPAddress       string             `json:"ipAddress,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// TelemetrySample is one IMU/position reading from a drone.
type TelemetrySample struct {
	Timestamp int64   `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	Yaw       float64 `json:"yaw"`
	Battery   float64 `json:"battery"`
}

// TelemetryBatch is what a drone posts for one match round.
type TelemetryBatch struct {
	BatchID     string            `json:"batchId"`
	MatchID     string            `json:"matchId"`
	RoundNumber int               `json:"roundNumber"`
	DroneID     string            `json:"droneId"`
	Samples     []TelemetrySample `json:"samples"`
}

// HardwareCommand is a one-way instruction for a single drone.
type HardwareCommand struct {
	Command     types.Command `json:"command"`
	DroneID     string        `json:"droneId"`
	MatchID     string        `json:"matchId"`
	TeamID      string        `json:"teamId,omitempty"`
	RoundNumber int           `json:"roundNumber"`
	ServerURL   string        `json:"serverUrl,omitempty"`
	IssuedAt    time.Time     `json:"issuedAt"`
}
