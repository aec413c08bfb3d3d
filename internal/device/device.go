// Package device implements the connection state machine that drives
// pairing, MQTT/TLS session establishment, handshake, and steady-state
// messaging for one Astarte device.
package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/cache"
	"github.com/cirrus-iot/astarte-device-sdk/internal/credstore"
	"github.com/cirrus-iot/astarte-device-sdk/internal/expectation"
	mqtt "github.com/cirrus-iot/astarte-device-sdk/internal/transport/mqtt"
)

// Transport is the subset of *mqtt.Adapter the connection FSM drives.
// Defined as an interface so tests can substitute a fake broker without
// opening a real MQTT/TLS connection.
type Transport interface {
	Connect() error
	Disconnect(quiesce time.Duration)
	Subscribe(topic string, qos byte) error
	Publish(topic string, payload []byte, qos byte, retain bool) error
	HasPendingOutgoing() bool
	IsConnected() bool

	SetOnConnected(func(sessionPresent bool))
	SetOnDisconnected(func())
	SetOnSubscribed(func(msgID uint32, code byte))
	SetOnMessage(func(topic string, payload []byte))
}

// Config constructs a Device. Adapter, Introspection, Realm, and DeviceID
// are required; Cache defaults to an in-memory no-op-free cache.Memory if
// nil.
type Config struct {
	Logger        *zap.Logger
	Adapter       Transport
	Introspection *astarte.Introspection
	Cache         cache.Cache
	Realm         string
	DeviceID      string

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	OnConnection    func()
	OnDisconnection func()
	OnData          func(interfaceName, path string, data astarte.AstarteData, ts *time.Time)
	OnUnset         func(interfaceName, path string)

	// HealthPublish, if set, is invoked periodically by Run alongside the
	// FSM tick loop, supervised by the same errgroup.
	HealthPublish func(ctx context.Context) error
	HealthPeriod  time.Duration

	// Credentials and CredentialsTag, if both set, let Close remove the
	// device's own TLS client certificate from the credential store.
	Credentials    credstore.Store
	CredentialsTag string
}

// Device owns one MQTT connection's FSM state, its introspection, and the
// expectation queue used by the end-to-end harness.
type Device struct {
	logger        *zap.Logger
	adapter       Transport
	introspection *astarte.Introspection
	cache         cache.Cache
	realm         string
	deviceID      string
	baseTopic     string
	backoff       *Backoff
	cfg           Config

	Expectations *expectation.Queues

	mu                  sync.Mutex
	state               State
	sessionPresent      bool
	subscriptionFailure bool
	nextErrorDeadline   time.Time
	lastErr             error
}

// New constructs a Device wired to cfg.Adapter's callback fields.
func New(cfg Config) *Device {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	d := &Device{
		logger:        cfg.Logger.With(zap.String("component", "device")),
		adapter:       cfg.Adapter,
		introspection: cfg.Introspection,
		cache:         cfg.Cache,
		realm:         cfg.Realm,
		deviceID:      cfg.DeviceID,
		baseTopic:     mqtt.BaseTopic(cfg.Realm, cfg.DeviceID),
		backoff:       NewBackoff(cfg.BackoffInitial, cfg.BackoffMax),
		cfg:           cfg,
		Expectations:  expectation.New(),
		state:         Disconnected,
	}
	d.adapter.SetOnConnected(d.onMQTTConnected)
	d.adapter.SetOnDisconnected(d.onMQTTDisconnected)
	d.adapter.SetOnSubscribed(d.onMQTTSubscribed)
	d.adapter.SetOnMessage(d.onMQTTMessage)
	return d
}

// State returns the FSM's current state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	if s == Connected {
		d.backoff.Reset()
	}
	d.logger.Debug("device connection state change", zap.Stringer("state", s))
}

// Connect initiates the MQTT connection. It fails with
// KindMQTTAlreadyConnecting if a connection attempt or handshake is already
// underway, or KindMQTTAlreadyConnected if Connected.
func (d *Device) Connect() error {
	const op = "device.Device.Connect"
	switch d.State() {
	case MqttConnecting, StartHandshake, EndHandshake:
		return asterr.New(asterr.KindMQTTAlreadyConnecting, op, nil)
	case Connected:
		return asterr.New(asterr.KindMQTTAlreadyConnected, op, nil)
	}
	d.setState(MqttConnecting)
	if err := d.adapter.Connect(); err != nil {
		d.setState(Disconnected)
		return err
	}
	return nil
}

// Disconnect sends an MQTT DISCONNECT if not already disconnected. The FSM
// transitions to Disconnected asynchronously once the adapter confirms.
func (d *Device) Disconnect() error {
	const op = "device.Device.Disconnect"
	if d.State() == Disconnected {
		return asterr.New(asterr.KindDeviceNotReady, op, nil)
	}
	d.adapter.Disconnect(250 * time.Millisecond)
	return nil
}

// Close disconnects the device (if connected) and removes its TLS client
// certificate from the credential store under its own tag, if one was
// configured. It is a no-op on the credential store when Credentials or
// CredentialsTag is unset.
func (d *Device) Close() error {
	if d.State() != Disconnected {
		_ = d.Disconnect()
	}
	if d.cfg.Credentials == nil || d.cfg.CredentialsTag == "" {
		return nil
	}
	return d.cfg.Credentials.Delete(d.cfg.CredentialsTag)
}

// Run drives the FSM tick loop (and, if configured, the health-status
// publisher) until ctx is cancelled or one of the supervised goroutines
// returns a fatal error, tearing the other down with it.
func (d *Device) Run(ctx context.Context, tickInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				d.Tick(ctx)
			}
		}
	})

	if d.cfg.HealthPublish != nil {
		period := d.cfg.HealthPeriod
		if period <= 0 {
			period = 30 * time.Second
		}
		g.Go(func() error {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := d.cfg.HealthPublish(ctx); err != nil {
						d.logger.Warn("health publish failed", zap.Error(err))
					}
				}
			}
		})
	}

	return g.Wait()
}

// Tick runs one iteration of the FSM runner for the current state.
// Disconnected and MqttConnecting are no-ops awaiting an external event.
func (d *Device) Tick(ctx context.Context) {
	switch d.State() {
	case StartHandshake:
		d.runStartHandshake(ctx)
	case EndHandshake:
		d.runEndHandshake(ctx)
	case HandshakeError:
		d.runHandshakeError()
	case Connected:
		// steady state; nothing to drive here beyond what callbacks do
	}
}

func (d *Device) onMQTTConnected(sessionPresent bool) {
	d.mu.Lock()
	d.sessionPresent = sessionPresent
	d.mu.Unlock()
	d.setState(StartHandshake)
}

func (d *Device) onMQTTDisconnected() {
	d.setState(Disconnected)
	if d.cfg.OnDisconnection != nil {
		d.cfg.OnDisconnection()
	}
}

func (d *Device) onMQTTSubscribed(_ uint32, code byte) {
	if code != 0 && code != 1 && code != 2 {
		d.mu.Lock()
		d.subscriptionFailure = true
		d.mu.Unlock()
	}
}
