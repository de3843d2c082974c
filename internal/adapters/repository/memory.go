package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/okian/dronesoccer/internal/domain/model"
)

type telemetryKey struct {
	matchID string
	round   int
}

// MemoryStore keeps everything in process memory behind one RWMutex.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	tournaments map[string]model.Tournament
	teams       map[string]model.Team
	drones      map[string]model.Drone
	matches     map[string]*model.Match
	current     string
	devices     map[string]model.ESPDevice
	reports     map[string][]model.DroneReport
	telemetry   map[telemetryKey]map[string][]model.TelemetrySample
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments: map[string]model.Tournament{},
		teams:       map[string]model.Team{},
		drones:      map[string]model.Drone{},
		matches:     map[string]*model.Match{},
		devices:     map[string]model.ESPDevice{},
		reports:     map[string][]model.DroneReport{},
		telemetry:   map[telemetryKey]map[string][]model.TelemetrySample{},
	}
}

func (s *MemoryStore) read() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	return s.mu.RUnlock, nil
}

func (s *MemoryStore) write() (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	return s.mu.Unlock, nil
}

func (s *MemoryStore) PutTournament(_ context.Context, t model.Tournament) error {
	if t.ID == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	s.tournaments[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTournament(_ context.Context, id string) (model.Tournament, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return model.Tournament{}, false, err
	}
	defer unlock()
	t, ok := s.tournaments[id]
	return t, ok, nil
}

func (s *MemoryStore) PutTeam(_ context.Context, t model.Team) error {
	if t.ID == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	t.Members = slices.Clone(t.Members)
	s.teams[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (model.Team, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return model.Team{}, false, err
	}
	defer unlock()
	t, ok := s.teams[id]
	t.Members = slices.Clone(t.Members)
	return t, ok, nil
}

func (s *MemoryStore) PutDrone(_ context.Context, d model.Drone) error {
	if d.DroneID == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	s.drones[strings.ToUpper(d.DroneID)] = d
	return nil
}

func (s *MemoryStore) GetDrone(_ context.Context, droneID string) (model.Drone, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return model.Drone{}, false, err
	}
	defer unlock()
	d, ok := s.drones[strings.ToUpper(droneID)]
	return d, ok, nil
}

func (s *MemoryStore) ListDrones(_ context.Context) ([]model.Drone, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]model.Drone, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.Drone) int { return cmp.Compare(a.DroneID, b.DroneID) })
	return out, nil
}

func (s *MemoryStore) PutMatch(_ context.Context, m *model.Match) error {
	if m == nil || m.ID == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.Match, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	m, ok := s.matches[id]
	return m.Clone(), ok, nil
}

func (s *MemoryStore) ListMatches(_ context.Context, tournamentID string) ([]*model.Match, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]*model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		if tournamentID == "" || m.TournamentID == tournamentID {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Match) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) DeleteMatch(_ context.Context, id string) (bool, error) {
	unlock, err := s.write()
	if err != nil {
		return false, err
	}
	defer unlock()
	if _, ok := s.matches[id]; !ok {
		return false, nil
	}
	delete(s.matches, id)
	if s.current == id {
		s.current = ""
	}
	return true, nil
}

func (s *MemoryStore) CurrentMatch(_ context.Context) (string, error) {
	unlock, err := s.read()
	if err != nil {
		return "", err
	}
	defer unlock()
	return s.current, nil
}

func (s *MemoryStore) SwapCurrentMatch(_ context.Context, id string) (string, error) {
	unlock, err := s.write()
	if err != nil {
		return "", err
	}
	defer unlock()
	prev := s.current
	s.current = id
	return prev, nil
}

func (s *MemoryStore) GetDevice(_ context.Context, mac string) (model.ESPDevice, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return model.ESPDevice{}, false, err
	}
	defer unlock()
	d, ok := s.devices[mac]
	return d, ok, nil
}

func (s *MemoryStore) DeviceByDrone(_ context.Context, droneID string) (model.ESPDevice, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return model.ESPDevice{}, false, err
	}
	defer unlock()
	for _, d := range s.devices {
		if strings.EqualFold(d.DroneID, droneID) {
			return d, true, nil
		}
	}
	return model.ESPDevice{}, false, nil
}

func (s *MemoryStore) ListDevices(_ context.Context) ([]model.ESPDevice, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]model.ESPDevice, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.ESPDevice) int {
		if c := cmp.Compare(a.DroneID, b.DroneID); c != 0 {
			return c
		}
		return cmp.Compare(a.MACAddress, b.MACAddress)
	})
	return out, nil
}

func (s *MemoryStore) PutDevice(_ context.Context, d model.ESPDevice) error {
	if d.MACAddress == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	s.devices[d.MACAddress] = d
	return nil
}

func (s *MemoryStore) DeleteDevice(_ context.Context, mac string) (bool, error) {
	unlock, err := s.write()
	if err != nil {
		return false, err
	}
	defer unlock()
	if _, ok := s.devices[mac]; !ok {
		return false, nil
	}
	delete(s.devices, mac)
	return true, nil
}

func (s *MemoryStore) ReplaceReports(_ context.Context, matchID string, round int, reports []model.DroneReport) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	kept := slices.DeleteFunc(slices.Clone(s.reports[matchID]), func(r model.DroneReport) bool {
		return r.RoundNumber == round
	})
	s.reports[matchID] = append(kept, cloneReports(reports)...)
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context, matchID string, round int) ([]model.DroneReport, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]model.DroneReport, 0, len(s.reports[matchID]))
	for _, r := range s.reports[matchID] {
		if round == 0 || r.RoundNumber == round {
			out = append(out, r)
		}
	}
	out = cloneReports(out)
	slices.SortFunc(out, func(a, b model.DroneReport) int {
		if c := cmp.Compare(a.RoundNumber, b.RoundNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.DroneID, b.DroneID)
	})
	return out, nil
}

func (s *MemoryStore) DeleteReports(_ context.Context, matchID string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	delete(s.reports, matchID)
	return nil
}

func (s *MemoryStore) AppendTelemetry(_ context.Context, b model.TelemetryBatch) error {
	if b.MatchID == "" || b.DroneID == "" {
		return ErrInvalidRecord
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	key := telemetryKey{matchID: b.MatchID, round: b.RoundNumber}
	byDrone, ok := s.telemetry[key]
	if !ok {
		byDrone = map[string][]model.TelemetrySample{}
		s.telemetry[key] = byDrone
	}
	byDrone[b.DroneID] = append(byDrone[b.DroneID], b.Samples...)
	return nil
}

func (s *MemoryStore) RoundTelemetry(_ context.Context, matchID string, round int) (map[string][]model.TelemetrySample, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	src := s.telemetry[telemetryKey{matchID: matchID, round: round}]
	out := make(map[string][]model.TelemetrySample, len(src))
	for id, samples := range src {
		out[id] = slices.Clone(samples)
	}
	return out, nil
}

func (s *MemoryStore) DeleteTelemetry(_ context.Context, matchID string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	for key := range s.telemetry {
		if key.matchID == matchID {
			delete(s.telemetry, key)
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	unlock, err := s.read()
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneReports(in []model.DroneReport) []model.DroneReport {
	out := make([]model.DroneReport, len(in))
	for i, r := range in {
		r.Issues = slices.Clone(r.Issues)
		r.Hints = slices.Clone(r.Hints)
		r.Metrics.Variance = maps.Clone(r.Metrics.Variance)
		r.Metrics.Smoothness = maps.Clone(r.Metrics.Smoothness)
		r.Metrics.Spikes = maps.Clone(r.Metrics.Spikes)
		out[i] = r
	}
	return out
}
