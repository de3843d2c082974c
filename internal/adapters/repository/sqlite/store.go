// Package sqlite is the durable repository.Store on an embedded sqlite
// database. Aggregates are stored as JSON documents next to the columns
// the engine filters on.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/dronesoccer/internal/domain/model"
)

const pragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store implements repository.Store.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ repository.Store = (*Store)(nil)

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers; read-modify-write swaps rely on it.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return repository.ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if s.closed.Load() {
		return repository.ErrStoreClosed
	}
	return ctx.Err()
}

func (s *Store) PutTournament(ctx context.Context, t model.Tournament) error {
	if t.ID == "" {
		return repository.ErrInvalidRecord
	}
	return s.upsert(ctx, "put tournament",
		`INSERT INTO tournaments (id, data) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data`, t, t.ID)
}

func (s *Store) GetTournament(ctx context.Context, id string) (model.Tournament, bool, error) {
	return getOne[model.Tournament](ctx, s, "get tournament", `SELECT data FROM tournaments WHERE id = ?`, id)
}

func (s *Store) PutTeam(ctx context.Context, t model.Team) error {
	if t.ID == "" {
		return repository.ErrInvalidRecord
	}
	return s.upsert(ctx, "put team",
		`INSERT INTO teams (id, data) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data`, t, t.ID)
}

func (s *Store) GetTeam(ctx context.Context, id string) (model.Team, bool, error) {
	return getOne[model.Team](ctx, s, "get team", `SELECT data FROM teams WHERE id = ?`, id)
}

func (s *Store) PutDrone(ctx context.Context, d model.Drone) error {
	if d.DroneID == "" {
		return repository.ErrInvalidRecord
	}
	return s.upsert(ctx, "put drone",
		`INSERT INTO drones (drone_id, data) VALUES (?, ?)
ON CONFLICT(drone_id) DO UPDATE SET data = excluded.data`, d, strings.ToUpper(d.DroneID))
}

func (s *Store) GetDrone(ctx context.Context, droneID string) (model.Drone, bool, error) {
	return getOne[model.Drone](ctx, s, "get drone", `SELECT data FROM drones WHERE drone_id = ?`, strings.ToUpper(droneID))
}

func (s *Store) ListDrones(ctx context.Context) ([]model.Drone, error) {
	return getAll[model.Drone](ctx, s, "list drones", `SELECT data FROM drones ORDER BY drone_id`)
}

func (s *Store) PutMatch(ctx context.Context, m *model.Match) error {
	if m == nil || m.ID == "" {
		return repository.ErrInvalidRecord
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO matches (id, tournament_id, created_at, data) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET tournament_id = excluded.tournament_id, data = excluded.data`,
		m.ID, m.TournamentID, m.CreatedAt.UTC().UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("put match: %w", err)
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*model.Match, bool, error) {
	m, ok, err := getOne[model.Match](ctx, s, "get match", `SELECT data FROM matches WHERE id = ?`, id)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &m, true, nil
}

func (s *Store) ListMatches(ctx context.Context, tournamentID string) ([]*model.Match, error) {
	var (
		list []model.Match
		err  error
	)
	if tournamentID == "" {
		list, err = getAll[model.Match](ctx, s, "list matches", `SELECT data FROM matches ORDER BY created_at, id`)
	} else {
		list, err = getAll[model.Match](ctx, s, "list matches",
			`SELECT data FROM matches WHERE tournament_id = ? ORDER BY created_at, id`, tournamentID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*model.Match, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (s *Store) DeleteMatch(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.tx(ctx, "delete match", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		_, err = tx.ExecContext(ctx, `DELETE FROM current_match WHERE match_id = ?`, id)
		return err
	})
	return deleted, err
}

func (s *Store) CurrentMatch(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT match_id FROM current_match WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("current match: %w", err)
	}
	return id, nil
}

func (s *Store) SwapCurrentMatch(ctx context.Context, id string) (string, error) {
	var prev string
	err := s.tx(ctx, "swap current match", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT match_id FROM current_match WHERE slot = 1`).Scan(&prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if id == "" {
			_, err = tx.ExecContext(ctx, `DELETE FROM current_match WHERE slot = 1`)
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO current_match (slot, match_id) VALUES (1, ?)
ON CONFLICT(slot) DO UPDATE SET match_id = excluded.match_id`, id)
		return err
	})
	return prev, err
}

func (s *Store) GetDevice(ctx context.Context, mac string) (model.ESPDevice, bool, error) {
	return getOne[model.ESPDevice](ctx, s, "get device", `SELECT data FROM devices WHERE mac_address = ?`, mac)
}

func (s *Store) DeviceByDrone(ctx context.Context, droneID string) (model.ESPDevice, bool, error) {
	return getOne[model.ESPDevice](ctx, s, "device by drone",
		`SELECT data FROM devices WHERE drone_id = ? ORDER BY mac_address LIMIT 1`, strings.ToUpper(droneID))
}

func (s *Store) ListDevices(ctx context.Context) ([]model.ESPDevice, error) {
	return getAll[model.ESPDevice](ctx, s, "list devices", `SELECT data FROM devices ORDER BY drone_id, mac_address`)
}

func (s *Store) PutDevice(ctx context.Context, d model.ESPDevice) error {
	if d.MACAddress == "" {
		return repository.ErrInvalidRecord
	}
	return s.upsert(ctx, "put device", `
INSERT INTO devices (mac_address, data, drone_id) VALUES (?, ?, ?)
ON CONFLICT(mac_address) DO UPDATE SET data = excluded.data, drone_id = excluded.drone_id`,
		d, d.MACAddress, strings.ToUpper(d.DroneID))
}

func (s *Store) DeleteDevice(ctx context.Context, mac string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE mac_address = ?`, mac)
	if err != nil {
		return false, fmt.Errorf("delete device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete device: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ReplaceReports(ctx context.Context, matchID string, round int, reports []model.DroneReport) error {
	return s.tx(ctx, "replace reports", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM drone_reports WHERE match_id = ? AND round_number = ?`, matchID, round); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO drone_reports (id, match_id, round_number, drone_id, data) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range reports {
			if r.ID == "" {
				return repository.ErrInvalidRecord
			}
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, r.ID, matchID, round, r.DroneID, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListReports(ctx context.Context, matchID string, round int) ([]model.DroneReport, error) {
	if round == 0 {
		return getAll[model.DroneReport](ctx, s, "list reports",
			`SELECT data FROM drone_reports WHERE match_id = ? ORDER BY round_number, drone_id`, matchID)
	}
	return getAll[model.DroneReport](ctx, s, "list reports",
		`SELECT data FROM drone_reports WHERE match_id = ? AND round_number = ? ORDER BY drone_id`, matchID, round)
}

func (s *Store) DeleteReports(ctx context.Context, matchID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drone_reports WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("delete reports: %w", err)
	}
	return nil
}

func (s *Store) AppendTelemetry(ctx context.Context, b model.TelemetryBatch) error {
	if b.MatchID == "" || b.DroneID == "" {
		return repository.ErrInvalidRecord
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(b.Samples)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO telemetry (match_id, round_number, drone_id, data) VALUES (?, ?, ?, ?)`,
		b.MatchID, b.RoundNumber, b.DroneID, string(data))
	if err != nil {
		return fmt.Errorf("append telemetry: %w", err)
	}
	return nil
}

func (s *Store) RoundTelemetry(ctx context.Context, matchID string, round int) (map[string][]model.TelemetrySample, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT drone_id, data FROM telemetry WHERE match_id = ? AND round_number = ? ORDER BY seq`, matchID, round)
	if err != nil {
		return nil, fmt.Errorf("round telemetry: %w", err)
	}
	defer rows.Close()

	out := map[string][]model.TelemetrySample{}
	for rows.Next() {
		var (
			droneID string
			data    string
			samples []model.TelemetrySample
		)
		if err := rows.Scan(&droneID, &data); err != nil {
			return nil, fmt.Errorf("round telemetry: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &samples); err != nil {
			return nil, fmt.Errorf("decode telemetry: %w", err)
		}
		out[droneID] = append(out[droneID], samples...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("round telemetry: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteTelemetry(ctx context.Context, matchID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM telemetry WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("delete telemetry: %w", err)
	}
	return nil
}

// upsert encodes v and runs query with (key, data, extra...).
func (s *Store) upsert(ctx context.Context, op, query string, v any, key string, extra ...any) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	args := append([]any{key, string(data)}, extra...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) tx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, repository.ErrInvalidRecord) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func getOne[T any](ctx context.Context, s *Store, op, query string, args ...any) (T, bool, error) {
	var zero T
	if err := s.ready(ctx); err != nil {
		return zero, false, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", op, err)
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return zero, false, fmt.Errorf("%s: decode: %w", op, err)
	}
	return v, true, nil
}

func getAll[T any](ctx context.Context, s *Store, op, query string, args ...any) ([]T, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
