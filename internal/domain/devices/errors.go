package devices

import "github.com/okian/dronesoccer/internal/domain/failure"

var (
	ErrDuplicateMAC   = failure.New(failure.Validation, "duplicate_mac", "device with this MAC address already registered")
	ErrDuplicateDrone = failure.New(failure.Validation, "duplicate_drone_binding", "drone is already bound to another device")
	ErrInvalidDevice  = failure.New(failure.Validation, "invalid_device", "invalid device")
	ErrDeviceNotFound = failure.New(failure.NotFound, "device_not_found", "device not found")
)
