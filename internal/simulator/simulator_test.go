package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/dronesoccer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeEngine answers the device and telemetry routes the way the engine does.
type fakeEngine struct {
	mu         sync.Mutex
	healthy    atomic.Bool
	devices    map[string]bool
	batchIDs   map[string]bool
	batches    []Batch
	heartbeats int
}

func newFakeEngine() *fakeEngine {
	e := &fakeEngine{devices: map[string]bool{}, batchIDs: map[string]bool{}}
	e.healthy.Store(true)
	return e
}

func (e *fakeEngine) snapshot() (devices, heartbeats int, batches []Batch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.devices), e.heartbeats, append([]Batch(nil), e.batches...)
}

func (e *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !e.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/devices", func(w http.ResponseWriter, r *http.Request) {
		var d Device
		_ = json.NewDecoder(r.Body).Decode(&d)
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.devices[d.MACAddress] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		e.devices[d.MACAddress] = true
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /api/devices/announce", func(w http.ResponseWriter, r *http.Request) {
		var in announceRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		e.mu.Lock()
		known := e.devices[in.MACAddress]
		e.mu.Unlock()
		_ = json.NewEncoder(w).Encode(Announcement{Registered: known})
	})
	mux.HandleFunc("POST /api/devices/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		e.mu.Lock()
		e.heartbeats++
		e.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		var b Batch
		_ = json.NewDecoder(r.Body).Decode(&b)
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.batchIDs[b.BatchID] {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(Ack{BatchID: b.BatchID, Duplicate: true})
			return
		}
		e.batchIDs[b.BatchID] = true
		e.batches = append(e.batches, b)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Ack{BatchID: b.BatchID, Accepted: len(b.Samples)})
	})
	return mux
}

func TestNewFleet(t *testing.T) {
	Convey("Given a list of drone ids", t, func() {
		fleet := NewFleet([]string{" r1", "", "B1", "R2", "B2", "R3"})

		Convey("Then one device is built per non-blank id", func() {
			So(fleet, ShouldHaveLength, 5)
			So(fleet[0].DroneID, ShouldEqual, "R1")
			So(fleet[0].Nickname, ShouldEqual, "sim-r1")
			So(fleet[0].DeviceType, ShouldEqual, "ESP32-Dev")
		})

		Convey("Then MAC addresses are stable and distinct", func() {
			again := NewFleet([]string{"R1"})
			So(again[0].MACAddress, ShouldEqual, fleet[0].MACAddress)
			So(fleet[0].MACAddress, ShouldStartWith, macPrefix+":")
			So(fleet[0].MACAddress, ShouldHaveLength, len("24:6F:28:00:00:00"))
			seen := map[string]bool{}
			for _, d := range fleet {
				So(seen[d.MACAddress], ShouldBeFalse)
				seen[d.MACAddress] = true
			}
		})

		Convey("Then roles cycle through playable positions", func() {
			So(fleet[0].Role, ShouldEqual, "Striker")
			So(fleet[1].Role, ShouldEqual, "Defender")
			So(fleet[2].Role, ShouldEqual, "Forward")
		})
	})
}

func TestFlightBatch(t *testing.T) {
	Convey("Given a drone in flight", t, func() {
		f := newFlight("R1")
		now := time.Date(2026, 6, 13, 15, 0, 0, 0, time.UTC)

		Convey("When a batch is built", func() {
			b := f.batch("m1", 2, 5, now, time.Second)

			Convey("Then it carries the round and fresh samples", func() {
				So(b.BatchID, ShouldNotBeEmpty)
				So(b.MatchID, ShouldEqual, "m1")
				So(b.RoundNumber, ShouldEqual, 2)
				So(b.DroneID, ShouldEqual, "R1")
				So(b.Samples, ShouldHaveLength, 5)
				So(b.Samples[4].Timestamp, ShouldEqual, now.UnixMilli())
				for i, s := range b.Samples {
					if i > 0 {
						So(s.Timestamp, ShouldBeGreaterThan, b.Samples[i-1].Timestamp)
						So(s.Battery, ShouldBeLessThan, b.Samples[i-1].Battery)
					}
					So(s.X, ShouldBeBetweenOrEqual, 0.0, fieldLength)
					So(s.Y, ShouldBeBetweenOrEqual, 0.0, fieldWidth)
					So(s.Z, ShouldBeBetweenOrEqual, 0.0, ceiling)
					So(s.Yaw, ShouldBeBetweenOrEqual, 0.0, 360)
				}
			})

			Convey("Then the next batch has a new id", func() {
				next := f.batch("m1", 2, 0, now.Add(time.Second), time.Second)
				So(next.BatchID, ShouldNotEqual, b.BatchID)
				So(next.Samples, ShouldHaveLength, 1)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running engine", t, func() {
		engine := newFakeEngine()
		srv := httptest.NewServer(engine.handler())
		defer srv.Close()
		ctx := context.Background()

		config := func() *Config {
			return &Config{
				BaseURL:         srv.URL,
				MatchID:         "m1",
				Round:           1,
				Drones:          []string{"R1", "B1"},
				Rate:            time.Millisecond,
				Batches:         3,
				SamplesPerBatch: 5,
				Timeout:         time.Second,
			}
		}

		Convey("When a fixed number of batches is streamed", func() {
			stats, err := Run(ctx, config())

			Convey("Then every device is registered and every batch accepted", func() {
				So(err, ShouldBeNil)
				So(stats.DevicesRegistered, ShouldEqual, 2)
				So(stats.DevicesAnnounced, ShouldEqual, 2)
				So(stats.Heartbeats, ShouldEqual, 6)
				So(stats.BatchesSent, ShouldEqual, 6)
				So(stats.BatchesAccepted, ShouldEqual, 6)
				So(stats.SamplesAccepted, ShouldEqual, 30)
				So(stats.BatchesFailed, ShouldEqual, 0)
				_, heartbeats, batches := engine.snapshot()
				So(heartbeats, ShouldEqual, 6)
				for _, b := range batches {
					So(b.MatchID, ShouldEqual, "m1")
					So(b.RoundNumber, ShouldEqual, 1)
				}
			})

			Convey("And the fleet runs again", func() {
				again, err := Run(ctx, config())

				Convey("Then existing registrations are tolerated", func() {
					So(err, ShouldBeNil)
					So(again.DevicesRegistered, ShouldEqual, 0)
					So(again.DevicesAnnounced, ShouldEqual, 2)
					So(again.BatchesAccepted, ShouldEqual, 6)
				})
			})
		})

		Convey("When every second batch is a resend", func() {
			cfg := config()
			cfg.Batches = 4
			cfg.DuplicateEvery = 2
			stats, err := Run(ctx, cfg)

			Convey("Then the engine reports the resends as duplicates", func() {
				So(err, ShouldBeNil)
				So(stats.BatchesSent, ShouldEqual, 8)
				So(stats.BatchesAccepted, ShouldEqual, 4)
				So(stats.BatchesDuplicate, ShouldEqual, 4)
				_, _, batches := engine.snapshot()
				So(batches, ShouldHaveLength, 4)
			})
		})

		Convey("When registration is skipped for unknown devices", func() {
			cfg := config()
			cfg.SkipRegister = true
			stats, err := Run(ctx, cfg)

			Convey("Then nothing is announced but telemetry still flows", func() {
				So(err, ShouldBeNil)
				So(stats.DevicesRegistered, ShouldEqual, 0)
				So(stats.DevicesAnnounced, ShouldEqual, 0)
				So(stats.BatchesAccepted, ShouldEqual, 6)
			})
		})

		Convey("When the run is bounded by a duration", func() {
			cfg := config()
			cfg.Batches = 0
			cfg.Rate = 5 * time.Millisecond
			cfg.Duration = 40 * time.Millisecond
			stats, err := Run(ctx, cfg)

			Convey("Then it stops cleanly when the window closes", func() {
				So(err, ShouldBeNil)
				So(stats.BatchesSent, ShouldBeGreaterThanOrEqualTo, 2)
				So(stats.Duration, ShouldBeGreaterThanOrEqualTo, 40*time.Millisecond)
			})
		})

		Convey("When the caller cancels", func() {
			cfg := config()
			cfg.Batches = 0
			cfg.Duration = time.Minute
			cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			_, err := Run(cctx, cfg)

			Convey("Then the cancellation is reported", func() {
				So(err, ShouldEqual, context.DeadlineExceeded)
			})
		})

		Convey("When the engine is unhealthy", func() {
			engine.healthy.Store(false)
			_, err := Run(ctx, config())

			Convey("Then the run fails before touching devices", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
				devices, _, _ := engine.snapshot()
				So(devices, ShouldEqual, 0)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given simulator configurations", t, func() {
		valid := func() *Config {
			return &Config{BaseURL: "http://x", MatchID: "m1", Round: 1, Drones: []string{"R1", "B1"}, Duration: time.Second}
		}

		Convey("Then defaults are filled in", func() {
			cfg := valid()
			So(validate(cfg), ShouldBeNil)
			So(cfg.Rate, ShouldEqual, DefaultRate)
			So(cfg.SamplesPerBatch, ShouldEqual, DefaultSamplesPerBatch)
			So(cfg.Workers, ShouldEqual, 2)
		})

		Convey("Then incomplete configurations are rejected", func() {
			cases := map[string]func(*Config){
				"base URL": func(c *Config) { c.BaseURL = "" },
				"match id": func(c *Config) { c.MatchID = "" },
				"round":    func(c *Config) { c.Round = 0 },
				"drone id": func(c *Config) { c.Drones = []string{" "} },
				"duration": func(c *Config) { c.Duration = 0 },
			}
			for want, mutate := range cases {
				cfg := valid()
				mutate(cfg)
				err := validate(cfg)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, want)
			}
		})
	})
}

func TestDefaults(t *testing.T) {
	Convey("Given simulator environment variables", t, func() {
		Convey("When none are set", func() {
			cfg, err := Defaults()

			Convey("Then built-in defaults apply", func() {
				So(err, ShouldBeNil)
				So(cfg.BaseURL, ShouldEqual, "http://localhost:9080")
				So(cfg.Drones, ShouldResemble, []string{"R1", "R2", "B1", "B2"})
				So(cfg.Round, ShouldEqual, 1)
				So(cfg.Rate, ShouldEqual, DefaultRate)
			})
		})

		Convey("When they are set", func() {
			t.Setenv("DRONESOCCER_SIM_MATCH", "m9")
			t.Setenv("DRONESOCCER_SIM_ROUND", "2")
			t.Setenv("DRONESOCCER_SIM_DRONES", " r3, b4 ,")
			t.Setenv("DRONESOCCER_SIM_RATE", "250ms")
			cfg, err := Defaults()

			Convey("Then they override the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.MatchID, ShouldEqual, "m9")
				So(cfg.Round, ShouldEqual, 2)
				So(cfg.Drones, ShouldResemble, []string{"R3", "B4"})
				So(cfg.Rate, ShouldEqual, 250*time.Millisecond)
			})
		})

		Convey("When a value does not parse", func() {
			t.Setenv("DRONESOCCER_SIM_DURATION", "soon")
			_, err := Defaults()

			Convey("Then the variable is named in the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "DRONESOCCER_SIM_DURATION")
			})
		})
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("Given a log file path", t, func() {
		path := filepath.Join(t.TempDir(), "sim.log")
		defer func() { _ = logger.Init() }()

		Convey("When logging is set up", func() {
			So(SetupLogging(path, false), ShouldBeNil)

			Convey("Then records reach the file", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Contains(string(data), "logging to file"), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := SetupLogging(filepath.Join(path, "missing", "sim.log"), false)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
