// Package devices tracks ESP hardware identity and liveness, independent of
// any match.
package devices

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// Store persists devices keyed by upper-case MAC address.
type Store interface {
	GetDevice(ctx context.Context, mac string) (model.ESPDevice, bool, error)
	DeviceByDrone(ctx context.Context, droneID string) (model.ESPDevice, bool, error)
	ListDevices(ctx context.Context) ([]model.ESPDevice, error)
	PutDevice(ctx context.Context, d model.ESPDevice) error
	DeleteDevice(ctx context.Context, mac string) (bool, error)
}

// Registration is the input of Register.
type Registration struct {
	MACAddress      string           `json:"macAddress"`
	DroneID         string           `json:"droneId"`
	Role            types.Role       `json:"role"`
	DeviceType      types.DeviceType `json:"deviceType"`
	Nickname        string           `json:"nickname"`
	FirmwareVersion string           `json:"firmwareVersion"`
}

// Patch holds the updatable fields of a device; nil fields are left as is.
type Patch struct {
	DroneID         *string           `json:"droneId"`
	Role            *types.Role       `json:"role"`
	DeviceType      *types.DeviceType `json:"deviceType"`
	Nickname        *string           `json:"nickname"`
	FirmwareVersion *string           `json:"firmwareVersion"`
	IsActive        *bool             `json:"isActive"`
}

// Announcement is the answer to a device announcing itself on boot.
type Announcement struct {
	Registered bool             `json:"registered"`
	Device     *model.ESPDevice `json:"device,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// Registry serializes device writes so MAC and drone bindings stay unique.
type Registry struct {
	mu    sync.Mutex
	store Store
	clock clockwork.Clock
	log   logger.Logger
}

// New creates a Registry over store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{store: store, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("devices")
	}
	return r
}

// NormalizeMAC upper-cases and trims a MAC address.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}

// Register adds a device. It starts offline until its first heartbeat.
func (r *Registry) Register(ctx context.Context, in Registration) (model.ESPDevice, error) {
	mac := NormalizeMAC(in.MACAddress)
	droneID := strings.ToUpper(strings.TrimSpace(in.DroneID))
	role, ok := types.ParseRole(string(in.Role))
	switch {
	case mac == "" || droneID == "":
		return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "MAC address and drone id are required")
	case !ok || !role.Playable():
		return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "unknown drone role %q", in.Role)
	}
	deviceType := in.DeviceType
	if deviceType == "" {
		deviceType = types.DeviceESP32Dev
	}
	if !deviceType.Valid() {
		return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "unknown device type %q", in.DeviceType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found, err := r.store.GetDevice(ctx, mac); err != nil {
		return model.ESPDevice{}, failure.Wrap("register device", err)
	} else if found {
		return model.ESPDevice{}, failure.Wrapf(ErrDuplicateMAC, "%s", mac)
	}
	if other, found, err := r.store.DeviceByDrone(ctx, droneID); err != nil {
		return model.ESPDevice{}, failure.Wrap("register device", err)
	} else if found {
		return model.ESPDevice{}, failure.Wrapf(ErrDuplicateDrone, "drone %s is bound to %s", droneID, other.MACAddress)
	}

	now := r.clock.Now()
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = fmt.Sprintf("%s %s", droneID, role)
	}
	d := model.ESPDevice{
		MACAddress:      mac,
		DroneID:         droneID,
		Role:            role,
		Nickname:        nickname,
		DeviceType:      deviceType,
		FirmwareVersion: in.FirmwareVersion,
		IsActive:        true,
		Status:          types.DeviceOffline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.store.PutDevice(ctx, d); err != nil {
		return model.ESPDevice{}, failure.Wrap("register device", err)
	}
	r.refreshGauges(ctx)
	r.log.Info(ctx, "device registered",
		logger.String("mac", mac), logger.String("drone_id", droneID), logger.String("role", string(role)))
	return d, nil
}

// Update applies patch to the device at mac.
func (r *Registry) Update(ctx context.Context, mac string, patch Patch) (model.ESPDevice, error) {
	mac = NormalizeMAC(mac)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.get(ctx, mac)
	if err != nil {
		return model.ESPDevice{}, err
	}
	if patch.DroneID != nil {
		droneID := strings.ToUpper(strings.TrimSpace(*patch.DroneID))
		if droneID == "" {
			return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "drone id cannot be empty")
		}
		if droneID != d.DroneID {
			other, found, err := r.store.DeviceByDrone(ctx, droneID)
			if err != nil {
				return model.ESPDevice{}, failure.Wrap("update device", err)
			}
			if found && other.MACAddress != mac {
				return model.ESPDevice{}, failure.Wrapf(ErrDuplicateDrone, "drone %s is bound to %s", droneID, other.MACAddress)
			}
			d.DroneID = droneID
		}
	}
	if patch.Role != nil {
		role, ok := types.ParseRole(string(*patch.Role))
		if !ok || !role.Playable() {
			return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "unknown drone role %q", *patch.Role)
		}
		d.Role = role
	}
	if patch.DeviceType != nil {
		if !patch.DeviceType.Valid() {
			return model.ESPDevice{}, failure.Wrapf(ErrInvalidDevice, "unknown device type %q", *patch.DeviceType)
		}
		d.DeviceType = *patch.DeviceType
	}
	if patch.Nickname != nil {
		d.Nickname = strings.TrimSpace(*patch.Nickname)
	}
	if patch.FirmwareVersion != nil {
		d.FirmwareVersion = *patch.FirmwareVersion
	}
	if patch.IsActive != nil {
		d.IsActive = *patch.IsActive
	}
	d.UpdatedAt = r.clock.Now()

	if err := r.store.PutDevice(ctx, d); err != nil {
		return model.ESPDevice{}, failure.Wrap("update device", err)
	}
	r.log.Info(ctx, "device updated", logger.String("mac", mac), logger.String("drone_id", d.DroneID))
	return d, nil
}

// Delete removes the device at mac.
func (r *Registry) Delete(ctx context.Context, mac string) error {
	mac = NormalizeMAC(mac)

	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.store.DeleteDevice(ctx, mac)
	if err != nil {
		return failure.Wrap("delete device", err)
	}
	if !ok {
		return failure.Wrapf(ErrDeviceNotFound, "%s", mac)
	}
	r.refreshGauges(ctx)
	r.log.Info(ctx, "device deleted", logger.String("mac", mac))
	return nil
}

// Get returns the device at mac.
func (r *Registry) Get(ctx context.Context, mac string) (model.ESPDevice, error) {
	return r.get(ctx, NormalizeMAC(mac))
}

// List returns devices ordered by drone id, optionally filtered by status.
func (r *Registry) List(ctx context.Context, status types.DeviceStatus) ([]model.ESPDevice, error) {
	all, err := r.store.ListDevices(ctx)
	if err != nil {
		return nil, failure.Wrap("list devices", err)
	}
	if status == "" {
		return all, nil
	}
	out := all[:0:0]
	for _, d := range all {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

// LookupByDrone returns the device bound to droneID.
func (r *Registry) LookupByDrone(ctx context.Context, droneID string) (model.ESPDevice, bool, error) {
	d, ok, err := r.store.DeviceByDrone(ctx, strings.ToUpper(strings.TrimSpace(droneID)))
	if err != nil {
		return model.ESPDevice{}, false, failure.Wrap("lookup device", err)
	}
	return d, ok, nil
}

// Heartbeat marks the device at mac online now. ip is recorded when given.
func (r *Registry) Heartbeat(ctx context.Context, mac, ip string) (model.ESPDevice, error) {
	mac = NormalizeMAC(mac)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.get(ctx, mac)
	if err != nil {
		return model.ESPDevice{}, err
	}
	return r.touch(ctx, d, ip)
}

// HeartbeatByDrone marks the device bound to droneID online. Drones with no
// device are ignored.
func (r *Registry) HeartbeatByDrone(ctx context.Context, droneID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok, err := r.store.DeviceByDrone(ctx, strings.ToUpper(strings.TrimSpace(droneID)))
	if err != nil {
		return false, failure.Wrap("heartbeat", err)
	}
	if !ok {
		return false, nil
	}
	_, err = r.touch(ctx, d, "")
	return err == nil, err
}

// Announce answers a booting device. Unknown or inactive MACs are told to
// register through the admin panel rather than failing.
func (r *Registry) Announce(ctx context.Context, mac, ip string) (Announcement, error) {
	mac = NormalizeMAC(mac)
	if mac == "" {
		return Announcement{}, failure.Wrapf(ErrInvalidDevice, "MAC address is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok, err := r.store.GetDevice(ctx, mac)
	if err != nil {
		return Announcement{}, failure.Wrap("announce", err)
	}
	if !ok || !d.IsActive {
		r.log.Warn(ctx, "unregistered device announced", logger.String("mac", mac), logger.String("ip", ip))
		return Announcement{Message: "device not registered or inactive, register it via the admin panel"}, nil
	}
	d, err = r.touch(ctx, d, ip)
	if err != nil {
		return Announcement{}, err
	}
	return Announcement{Registered: true, Device: &d}, nil
}

// SweepOffline flips online devices whose last heartbeat is older than
// threshold to offline and returns how many were flipped. Running it again
// without new heartbeats flips nothing.
func (r *Registry) SweepOffline(ctx context.Context, threshold time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.store.ListDevices(ctx)
	if err != nil {
		return 0, failure.Wrap("sweep offline", err)
	}
	cutoff := r.clock.Now().Add(-threshold)
	flipped := 0
	for _, d := range all {
		if d.Status != types.DeviceOnline || !d.LastSeen.Before(cutoff) {
			continue
		}
		d.Status = types.DeviceOffline
		if err := r.store.PutDevice(ctx, d); err != nil {
			return flipped, failure.Wrap("sweep offline", err)
		}
		flipped++
	}

	metrics.RecordSweepFlipped(flipped)
	r.refreshGauges(ctx)
	if flipped > 0 {
		r.log.Info(ctx, "devices marked offline",
			logger.Int("flipped", flipped), logger.Duration("threshold", threshold))
	}
	return flipped, nil
}

func (r *Registry) touch(ctx context.Context, d model.ESPDevice, ip string) (model.ESPDevice, error) {
	wasOnline := d.Status == types.DeviceOnline
	d.Status = types.DeviceOnline
	d.LastSeen = r.clock.Now()
	if ip = strings.TrimSpace(ip); ip != "" {
		d.IPAddress = ip
	}
	if err := r.store.PutDevice(ctx, d); err != nil {
		return model.ESPDevice{}, failure.Wrap("heartbeat", err)
	}
	metrics.RecordHeartbeat()
	if !wasOnline {
		r.refreshGauges(ctx)
		r.log.Info(ctx, "device online", logger.String("mac", d.MACAddress), logger.String("drone_id", d.DroneID))
	}
	return d, nil
}

func (r *Registry) get(ctx context.Context, mac string) (model.ESPDevice, error) {
	d, ok, err := r.store.GetDevice(ctx, mac)
	if err != nil {
		return model.ESPDevice{}, failure.Wrap("get device", err)
	}
	if !ok {
		return model.ESPDevice{}, failure.Wrapf(ErrDeviceNotFound, "%s", mac)
	}
	return d, nil
}

func (r *Registry) refreshGauges(ctx context.Context) {
	all, err := r.store.ListDevices(ctx)
	if err != nil {
		r.log.Debug(ctx, "device gauges not refreshed", logger.Error(err))
		return
	}
	online := 0
	for _, d := range all {
		if d.Status == types.DeviceOnline {
			online++
		}
	}
	metrics.UpdateDeviceCounts(len(all), online)
}
