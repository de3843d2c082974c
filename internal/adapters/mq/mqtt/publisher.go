// Package mqtt delivers hardware commands to ESP32 drones over an MQTT
// broker and listens to the status topic the drones report on.
//
// START goes to drone/{id}/config with the telemetry endpoint the drone
// should post to; STOP and RESET go to drone/{id}/command. Publishes use
// QoS 1 and are spaced out so a fleet of small boards is not flooded.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

const (
	qos               = 1
	statusTopic       = "drone/+/status"
	defaultGap        = 100 * time.Millisecond
	defaultTimeout    = 5 * time.Second
	disconnectQuiesce = 250
)

// Client is the part of paho's client the publisher uses.
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// StatusFunc receives the drone id of a status message.
type StatusFunc func(ctx context.Context, droneID string)

// configMessage is what a drone reads on its config topic.
type configMessage struct {
	Command     types.Command `json:"command"`
	MatchID     string        `json:"matchId"`
	TeamID      string        `json:"teamId"`
	RoundNumber int           `json:"roundNumber"`
	ServerURL   string        `json:"serverUrl"`
}

// commandMessage is what a drone reads on its command topic.
type commandMessage struct {
	Command     types.Command `json:"command"`
	MatchID     string        `json:"matchId,omitempty"`
	RoundNumber int           `json:"roundNumber,omitempty"`
}

// Publisher implements the command worker's Publisher over MQTT.
type Publisher struct {
	client   Client
	external bool

	broker             string
	clientID           string
	username, password string

	gap      time.Duration
	timeout  time.Duration
	onStatus StatusFunc
	clock    clockwork.Clock
	log      logger.Logger

	mu   sync.Mutex
	last time.Time
}

// New creates a publisher for broker, e.g. tcp://localhost:1883.
func New(broker, clientID string, opts ...Option) *Publisher {
	p := &Publisher{
		broker:   broker,
		clientID: clientID,
		gap:      defaultGap,
		timeout:  defaultTimeout,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("mqtt")
	}
	if p.client == nil {
		p.client = paho.NewClient(p.clientOptions())
	}
	return p
}

func (p *Publisher) clientOptions() *paho.ClientOptions {
	o := paho.NewClientOptions().
		AddBroker(p.broker).
		SetClientID(p.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(p.timeout).
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) {
			p.log.Info(context.Background(), "mqtt broker connected", logger.String("broker", p.broker))
			if err := p.subscribe(); err != nil {
				p.log.Warn(context.Background(), "status subscription failed", logger.Error(err))
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			metrics.RecordErrorByComponent("mqtt", "connection_lost")
			p.log.Warn(context.Background(), "mqtt connection lost", logger.Error(err))
		})
	if p.username != "" {
		o.SetUsername(p.username).SetPassword(p.password)
	}
	return o
}

// Connect dials the broker. With connect retry enabled paho keeps trying
// in the background; a timeout here is reported but not fatal to callers
// that treat delivery as best effort.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect(), p.timeout, ErrConnectTimeout); err != nil {
		return fmt.Errorf("connect %s: %w", p.broker, err)
	}
	if p.external {
		return p.subscribe()
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}

// Publish sends cmd to its drone, waiting for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, cmd model.HardwareCommand) error { //nolint:gocritic // hugeParam: commands travel by value
	topic, payload, err := encode(cmd)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if delay := p.gap - p.clock.Since(p.last); delay > 0 && !p.last.IsZero() {
		select {
		case <-p.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err = wait(ctx, p.client.Publish(topic, qos, false, payload), p.timeout, ErrPublishTimeout)
	p.last = p.clock.Now()
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) subscribe() error {
	return wait(context.Background(), p.client.Subscribe(statusTopic, qos, p.handleStatus), p.timeout, ErrConnectTimeout)
}

func (p *Publisher) handleStatus(_ paho.Client, msg paho.Message) {
	droneID, ok := droneFromTopic(msg.Topic())
	if !ok {
		return
	}
	p.log.Debug(context.Background(), "drone status",
		logger.String("drone_id", droneID), logger.String("payload", string(msg.Payload())))
	if p.onStatus != nil {
		p.onStatus(context.Background(), droneID)
	}
}

// droneFromTopic extracts {id} from drone/{id}/status.
func droneFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "drone" || parts[2] != "status" || parts[1] == "" {
		return "", false
	}
	return strings.ToUpper(parts[1]), true
}

func encode(cmd model.HardwareCommand) (string, []byte, error) { //nolint:gocritic // hugeParam: commands travel by value
	var (
		topic string
		body  any
	)
	switch cmd.Command {
	case types.CommandStart:
		topic = "drone/" + cmd.DroneID + "/config"
		body = configMessage{
			Command: cmd.Command, MatchID: cmd.MatchID, TeamID: cmd.TeamID,
			RoundNumber: cmd.RoundNumber, ServerURL: cmd.ServerURL,
		}
	case types.CommandStop, types.CommandReset:
		topic = "drone/" + cmd.DroneID + "/command"
		body = commandMessage{Command: cmd.Command, MatchID: cmd.MatchID, RoundNumber: cmd.RoundNumber}
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Command)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", cmd.Command, err)
	}
	return topic, payload, nil
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration, onTimeout error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return onTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
