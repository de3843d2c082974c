package service

import (
	"context"
	"time"

	"github.com/okian/dronesoccer/internal/domain/devices"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
)

// RegisterDevice binds a new ESP device to a drone.
func (s *Service) RegisterDevice(ctx context.Context, in devices.Registration) (model.ESPDevice, error) {
	return s.registry.Register(ctx, in)
}

// UpdateDevice patches the device at mac.
func (s *Service) UpdateDevice(ctx context.Context, mac string, patch devices.Patch) (model.ESPDevice, error) {
	return s.registry.Update(ctx, mac, patch)
}

// DeleteDevice removes the device at mac.
func (s *Service) DeleteDevice(ctx context.Context, mac string) error {
	return s.registry.Delete(ctx, mac)
}

// GetDevice returns the device at mac.
func (s *Service) GetDevice(ctx context.Context, mac string) (model.ESPDevice, error) {
	return s.registry.Get(ctx, mac)
}

// ListDevices lists devices, optionally only those with status.
func (s *Service) ListDevices(ctx context.Context, status types.DeviceStatus) ([]model.ESPDevice, error) {
	return s.registry.List(ctx, status)
}

// Heartbeat marks the device at mac online.
func (s *Service) Heartbeat(ctx context.Context, mac, ip string) (model.ESPDevice, error) {
	return s.registry.Heartbeat(ctx, mac, ip)
}

// Announce answers a booting device.
func (s *Service) Announce(ctx context.Context, mac, ip string) (devices.Announcement, error) {
	return s.registry.Announce(ctx, mac, ip)
}

// SweepOffline flips stale devices offline. A zero threshold uses the
// configured one.
func (s *Service) SweepOffline(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = s.offlineThreshold
	}
	return s.registry.SweepOffline(ctx, threshold)
}

// DroneStatus is a liveness report heard on a drone's status topic.
func (s *Service) DroneStatus(ctx context.Context, droneID string) {
	if _, err := s.registry.HeartbeatByDrone(ctx, droneID); err != nil {
		s.logger.Warn(ctx, "status heartbeat failed", logger.String("drone_id", droneID), logger.Error(err))
	}
}
