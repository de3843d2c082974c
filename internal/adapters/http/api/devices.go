package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/okian/dronesoccer/internal/domain/devices"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// deviceRequest is the body of announce and heartbeat posts.
type deviceRequest struct {
	MACAddress string `json:"macAddress"`
	IPAddress  string `json:"ipAddress"`
}

type sweepRequest struct {
	ThresholdSeconds int `json:"thresholdSeconds"`
}

type sweepResponse struct {
	Flipped int `json:"flipped"`
}

// DeviceHandler serves the ESP device registry.
type DeviceHandler struct {
	deps Devices
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(deps Devices) *DeviceHandler {
	return &DeviceHandler{deps: deps}
}

// HandleList handles GET /api/devices[?status=].
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := types.DeviceStatus(strings.ToLower(r.URL.Query().Get("status")))
	switch status {
	case "", types.DeviceOnline, types.DeviceOffline:
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest,
			failure.Wrapf(ErrBadRequest, "status must be online or offline, got %q", status))
		return
	}
	ds, err := h.deps.ListDevices(r.Context(), status)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if ds == nil {
		ds = []model.ESPDevice{}
	}
	writeJSON(w, http.StatusOK, ds)
}

// HandleRegister handles POST /api/devices.
func (h *DeviceHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in devices.Registration
	if !decode(w, r, &in, false) {
		return
	}
	d, err := h.deps.RegisterDevice(r.Context(), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleGet handles GET /api/devices/{mac}.
func (h *DeviceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.GetDevice(r.Context(), r.PathValue("mac"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleUpdate handles PUT /api/devices/{mac}.
func (h *DeviceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch devices.Patch
	if !decode(w, r, &patch, false) {
		return
	}
	d, err := h.deps.UpdateDevice(r.Context(), r.PathValue("mac"), patch)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleDelete handles DELETE /api/devices/{mac}.
func (h *DeviceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteDevice(r.Context(), r.PathValue("mac")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAnnounce handles POST /api/devices/announce. Unknown devices get
// registered=false with 200.
func (h *DeviceHandler) HandleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decode(w, r, &req, false) {
		return
	}
	a, err := h.deps.Announce(r.Context(), req.MACAddress, clientIP(r, req.IPAddress))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleHeartbeat handles POST /api/devices/heartbeat.
func (h *DeviceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decode(w, r, &req, false) {
		return
	}
	d, err := h.deps.Heartbeat(r.Context(), req.MACAddress, clientIP(r, req.IPAddress))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleSweep handles POST /api/devices/sweep. The body is optional.
func (h *DeviceHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if !decode(w, r, &req, true) {
		return
	}
	if req.ThresholdSeconds < 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			failure.Wrapf(ErrBadRequest, "thresholdSeconds must not be negative"))
		return
	}
	n, err := h.deps.SweepOffline(r.Context(), time.Duration(req.ThresholdSeconds)*time.Second)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Flipped: n})
}

// clientIP prefers the address the device reports over the peer address.
func clientIP(r *http.Request, reported string) string {
	if reported = strings.TrimSpace(reported); reported != "" {
		return reported
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
