package simulator

import "time"

// Config holds configuration for a simulated ESP fleet.
type Config struct {
	BaseURL         string        // Base URL of the engine
	MatchID         string        // Match the telemetry belongs to
	Round           int           // Round number the telemetry belongs to
	Drones          []string      // Drone ids to simulate, e.g. R1 B2
	Rate            time.Duration // Interval between a drone's batches
	Duration        time.Duration // How long to keep sending
	Batches         int           // Stop after this many batches per drone; 0 runs for Duration
	SamplesPerBatch int           // Samples in each telemetry batch
	DuplicateEvery  int           // Resend every Nth batch id; 0 never resends
	Workers         int           // Concurrent drones in flight
	Timeout         time.Duration // HTTP request timeout
	SkipRegister    bool          // Only announce, for devices already registered
	LogFile         string        // Log file for simulator output
	Verbose         bool          // Enable verbose logging
}

// Device is one simulated ESP board.
type Device struct {
	MACAddress string `json:"macAddress"`
	DroneID    string `json:"droneId"`
	Role       string `json:"role"`
	DeviceType string `json:"deviceType"`
	Nickname   string `json:"nickname"`
	Firmware   string `json:"firmwareVersion"`
}

type announceRequest struct {
	MACAddress string `json:"macAddress"`
	IPAddress  string `json:"ipAddress"`
}

// Announcement is the engine's answer to a booting device.
type Announcement struct {
	Registered bool   `json:"registered"`
	Message    string `json:"message"`
}

// Sample is one IMU/position reading.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	Yaw       float64 `json:"yaw"`
	Battery   float64 `json:"battery"`
}

// Batch is a telemetry post for one drone and round.
type Batch struct {
	BatchID     string   `json:"batchId"`
	MatchID     string   `json:"matchId"`
	RoundNumber int      `json:"roundNumber"`
	DroneID     string   `json:"droneId"`
	Samples     []Sample `json:"samples"`
}

// Ack is the engine's answer to a telemetry post.
type Ack struct {
	BatchID   string `json:"batchId"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds simulator statistics.
type Stats struct {
	DevicesRegistered int
	DevicesAnnounced  int
	Heartbeats        int
	HeartbeatsFailed  int
	BatchesSent       int
	BatchesAccepted   int
	BatchesDuplicate  int
	BatchesFailed     int
	SamplesAccepted   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
