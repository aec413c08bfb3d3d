// Package mqtt wraps paho.mqtt.golang with the typed, callback-driven
// surface the device connection FSM expects: connect/disconnect/subscribe/
// publish plus four adapter-level events.
package mqtt

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Config configures the underlying paho client.
type Config struct {
	BrokerURL      string
	ClientID       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	TLSConfig      *tls.Config
}

// Adapter is a thin typed wrapper over a paho client. The zero value is not
// usable; build one with NewAdapter.
type Adapter struct {
	client paho.Client
	logger *zap.Logger
	cfg    Config

	pending atomic.Int64
	subSeq  atomic.Uint32

	// OnConnected, OnDisconnected, and OnSubscribed are set by the
	// connection FSM before Connect is called. OnMessage is set to route
	// inbound publishes into the FSM's dispatch path. OnPublished is
	// optional; the FSM does not set it.
	OnConnected    func(sessionPresent bool)
	OnDisconnected func()
	OnSubscribed   func(msgID uint32, code byte)
	OnPublished    func(topic string, payload []byte)
	OnMessage      func(topic string, payload []byte)
}

// NewAdapter builds a paho client from cfg without connecting.
func NewAdapter(cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{logger: logger, cfg: cfg}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetTLSConfig(cfg.TLSConfig)
	opts.SetAutoReconnect(false) // the FSM owns reconnection/backoff
	opts.SetCleanSession(false)  // required for the broker to report session_present

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		a.logger.Warn("mqtt connection lost", zap.Error(err))
		if a.OnDisconnected != nil {
			a.OnDisconnected()
		}
	})
	opts.SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) {
		if a.OnMessage != nil {
			a.OnMessage(msg.Topic(), msg.Payload())
		}
	})

	a.client = paho.NewClient(opts)
	return a
}

// Connect opens the MQTT/TLS connection and reports the CONNACK
// session-present flag via OnConnected once the connect token settles.
func (a *Adapter) Connect() error {
	const op = "mqtt.Adapter.Connect"
	token := a.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return asterr.New(asterr.KindMQTT, op, err)
	}

	sessionPresent := false
	if ct, ok := token.(*paho.ConnectToken); ok {
		sessionPresent = ct.SessionPresent()
	}
	if a.OnConnected != nil {
		a.OnConnected(sessionPresent)
	}
	return nil
}

// Disconnect sends an MQTT DISCONNECT, waiting up to quiesce for
// in-flight work to settle, then fires OnDisconnected.
func (a *Adapter) Disconnect(quiesce time.Duration) {
	a.client.Disconnect(uint(quiesce.Milliseconds()))
	if a.OnDisconnected != nil {
		a.OnDisconnected()
	}
}

// Subscribe subscribes to topic at the given QoS. OnSubscribed fires,
// asynchronously, with a locally assigned sequence number once the SUBACK
// is processed.
func (a *Adapter) Subscribe(topic string, qos byte) error {
	const op = "mqtt.Adapter.Subscribe"
	if qos > 2 {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	seq := a.subSeq.Add(1)
	a.pending.Add(1)
	token := a.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if a.OnMessage != nil {
			a.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	go func() {
		token.Wait()
		a.pending.Add(-1)
		code := byte(0)
		if err := token.Error(); err != nil {
			code = 0x80
			a.logger.Warn("mqtt subscribe failed", zap.String("topic", topic), zap.Error(err))
		}
		if a.OnSubscribed != nil {
			a.OnSubscribed(seq, code)
		}
	}()
	return nil
}

// Publish validates and sends payload to topic. path-shaped validation
// (leading "/") is the caller's responsibility; this layer validates qos.
func (a *Adapter) Publish(topic string, payload []byte, qos byte, retain bool) error {
	const op = "mqtt.Adapter.Publish"
	if qos > 2 {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	if qos > 0 {
		a.pending.Add(1)
	}
	token := a.client.Publish(topic, qos, retain, payload)
	if qos == 0 {
		if a.OnPublished != nil {
			a.OnPublished(topic, payload)
		}
		return nil
	}
	go func() {
		token.Wait()
		a.pending.Add(-1)
		if err := token.Error(); err != nil {
			a.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
			return
		}
		if a.OnPublished != nil {
			a.OnPublished(topic, payload)
		}
	}()
	return nil
}

// HasPendingOutgoing reports whether any QoS>0 publish or subscribe is
// still awaiting broker acknowledgement.
func (a *Adapter) HasPendingOutgoing() bool {
	return a.pending.Load() > 0
}

// IsConnected reports the underlying client's connection state.
func (a *Adapter) IsConnected() bool {
	return a.client.IsConnected()
}

// SetOnConnected, SetOnDisconnected, SetOnSubscribed, SetOnPublished, and
// SetOnMessage register the adapter's callbacks. All but SetOnPublished are
// part of the device.Transport interface, so the FSM can depend on that
// interface instead of this concrete type.
func (a *Adapter) SetOnConnected(fn func(sessionPresent bool))      { a.OnConnected = fn }
func (a *Adapter) SetOnDisconnected(fn func())                      { a.OnDisconnected = fn }
func (a *Adapter) SetOnSubscribed(fn func(msgID uint32, code byte)) { a.OnSubscribed = fn }
func (a *Adapter) SetOnPublished(fn func(topic string, payload []byte)) { a.OnPublished = fn }
func (a *Adapter) SetOnMessage(fn func(topic string, payload []byte))   { a.OnMessage = fn }
