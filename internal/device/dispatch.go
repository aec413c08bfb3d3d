package device

import (
	"time"

	"go.uber.org/zap"

	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
	mqtt "github.com/cirrus-iot/astarte-device-sdk/internal/transport/mqtt"
)

// onMQTTMessage is the inbound dispatch path: strip the base topic, split
// into interface name and mapping path, and route to the data or unset
// callback after typed BSON decoding. Every failure is logged and the
// message dropped; nothing here is fatal.
func (d *Device) onMQTTMessage(topic string, payload []byte) {
	ifaceName, path, ok := mqtt.SplitDataTopic(d.baseTopic, topic)
	if !ok {
		d.logger.Warn("dropping publish on unrecognized topic", zap.String("topic", topic))
		return
	}

	if len(payload) == 0 {
		if d.cfg.OnUnset != nil {
			d.cfg.OnUnset(ifaceName, path)
		} else {
			d.logger.Debug("unset event dropped: no unset callback registered",
				zap.String("interface", ifaceName), zap.String("path", path))
		}
		return
	}

	reader, err := bson.NewReader(payload)
	if err != nil {
		d.logger.Warn("dropping malformed inbound BSON", zap.String("topic", topic), zap.Error(err))
		return
	}
	valueEl, err := reader.Find("v")
	if err != nil {
		d.logger.Warn("inbound BSON missing \"v\" field", zap.String("topic", topic), zap.Error(err))
		return
	}

	iface := d.introspection.Lookup(ifaceName)
	if iface == nil {
		d.logger.Warn("dropping publish on undeclared interface", zap.String("interface", ifaceName))
		return
	}
	mapping, err := iface.LookupMapping(path)
	if err != nil {
		d.logger.Warn("dropping publish on unknown mapping", zap.String("interface", ifaceName), zap.String("path", path))
		return
	}

	value, err := astarte.Decode(valueEl, mapping.Type)
	if err != nil {
		d.logger.Warn("dropping publish with undecodable value",
			zap.String("interface", ifaceName), zap.String("path", path), zap.Error(err))
		return
	}

	var ts *time.Time
	if tsEl, err := reader.Find("t"); err == nil {
		if t, err := tsEl.DateTime(); err == nil {
			ts = &t
		}
	}

	if d.cfg.OnData != nil {
		d.cfg.OnData(ifaceName, path, value, ts)
	}
}
