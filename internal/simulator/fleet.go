package simulator

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/okian/dronesoccer/pkg/logger"
)

var fleetRoles = []string{"Striker", "Keeper", "Defender", "Forward"}

// NewFleet builds one device per drone id. MAC addresses are derived from
// the drone id so repeated runs reuse the same registrations.
func NewFleet(droneIDs []string) []Device {
	fleet := make([]Device, 0, len(droneIDs))
	for i, id := range droneIDs {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		fleet = append(fleet, Device{
			MACAddress: macFor(id),
			DroneID:    id,
			Role:       fleetRoles[i%len(fleetRoles)],
			DeviceType: "ESP32-Dev",
			Nickname:   "sim-" + strings.ToLower(id),
			Firmware:   DefaultFirmware,
		})
	}
	return fleet
}

func macFor(droneID string) string {
	sum := crc32.ChecksumIEEE([]byte(droneID))
	return fmt.Sprintf("%s:%02X:%02X:%02X", macPrefix, byte(sum>>16), byte(sum>>8), byte(sum))
}

// registerFleet registers every device. A device that is already known is
// not an error.
func registerFleet(ctx context.Context, client *HTTPClient, fleet []Device, stats *Stats) error {
	for _, d := range fleet {
		code, err := client.Post(ctx, "/api/devices", d, nil)
		if err != nil {
			return fmt.Errorf("register %s: %w", d.DroneID, err)
		}
		switch code {
		case StatusCreated:
			stats.DevicesRegistered++
		case StatusConflict:
			logger.Get().Debug(ctx, "device already registered",
				logger.String("drone", d.DroneID), logger.String("mac", d.MACAddress))
		default:
			return fmt.Errorf("register %s: unexpected status %d", d.DroneID, code)
		}
	}
	return nil
}

// announceFleet boots every device against the engine.
func announceFleet(ctx context.Context, client *HTTPClient, fleet []Device, stats *Stats) error {
	for _, d := range fleet {
		var ann Announcement
		code, err := client.Post(ctx, "/api/devices/announce",
			announceRequest{MACAddress: d.MACAddress, IPAddress: simulatedIP}, &ann)
		if err != nil {
			return fmt.Errorf("announce %s: %w", d.DroneID, err)
		}
		if code != StatusOK {
			return fmt.Errorf("announce %s: unexpected status %d", d.DroneID, code)
		}
		if !ann.Registered {
			logger.Get().Warn(ctx, "engine does not know device",
				logger.String("drone", d.DroneID), logger.String("message", ann.Message))
			continue
		}
		stats.DevicesAnnounced++
	}
	return nil
}
