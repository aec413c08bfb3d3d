package device

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/cache"
	mqtt "github.com/cirrus-iot/astarte-device-sdk/internal/transport/mqtt"
)

func (d *Device) runStartHandshake(ctx context.Context) {
	introStr := d.introspection.String()

	d.mu.Lock()
	sessionPresent := d.sessionPresent
	d.mu.Unlock()

	if sessionPresent {
		status, err := d.cache.Check(ctx, introStr)
		if err == nil && status == cache.Fresh {
			d.setState(Connected)
			return
		}
	}

	d.mu.Lock()
	d.subscriptionFailure = false
	d.mu.Unlock()

	d.setupSubscriptions()
	d.publishIntrospection(introStr)
	d.publishEmptyCache()
	d.setState(EndHandshake)
}

func (d *Device) runEndHandshake(ctx context.Context) {
	d.mu.Lock()
	failed := d.subscriptionFailure
	d.mu.Unlock()

	if failed {
		d.logger.Warn("subscription request denied during handshake")
		d.mu.Lock()
		d.lastErr = asterr.New(asterr.KindMQTT, "device.runEndHandshake", nil)
		d.mu.Unlock()
		d.setState(HandshakeError)
		return
	}

	if d.adapter.HasPendingOutgoing() {
		return
	}

	d.setState(Connected)

	introStr := d.introspection.String()
	if status, err := d.cache.Check(ctx, introStr); err == nil && status != cache.Fresh {
		if err := d.cache.Store(ctx, introStr); err != nil {
			d.logger.Warn("introspection cache update failed", zap.Error(err))
		}
	}

	if d.cfg.OnConnection != nil {
		d.cfg.OnConnection()
	}
}

func (d *Device) runHandshakeError() {
	d.mu.Lock()
	deadline := d.nextErrorDeadline
	d.mu.Unlock()

	if deadline.IsZero() {
		delay := d.backoff.Next()
		d.mu.Lock()
		d.nextErrorDeadline = time.Now().Add(delay)
		d.mu.Unlock()
		return
	}
	if time.Now().Before(deadline) {
		return
	}

	d.mu.Lock()
	d.nextErrorDeadline = time.Time{}
	d.mu.Unlock()

	d.setState(StartHandshake)
}

func (d *Device) setupSubscriptions() {
	topic := mqtt.ControlConsumerPropertiesTopic(d.baseTopic)
	if err := d.adapter.Subscribe(topic, 2); err != nil {
		d.logger.Warn("subscribe failed", zap.String("topic", topic), zap.Error(err))
	}

	for _, iface := range d.introspection.Interfaces() {
		if iface.Ownership != astarte.OwnershipServer {
			continue
		}
		wildcard := mqtt.ServerOwnedWildcard(d.baseTopic, iface.Name)
		if err := d.adapter.Subscribe(wildcard, 2); err != nil {
			d.logger.Warn("subscribe failed", zap.String("topic", wildcard), zap.Error(err))
		}
	}
}

func (d *Device) publishIntrospection(introStr string) {
	if err := d.adapter.Publish(d.baseTopic, []byte(introStr), 2, false); err != nil {
		d.logger.Warn("introspection publish failed", zap.Error(err))
	}
}

func (d *Device) publishEmptyCache() {
	topic := mqtt.ControlEmptyCacheTopic(d.baseTopic)
	if err := d.adapter.Publish(topic, []byte("1"), 2, false); err != nil {
		d.logger.Warn("empty-cache publish failed", zap.Error(err))
	}
}
