package device

import (
	"strings"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
	mqtt "github.com/cirrus-iot/astarte-device-sdk/internal/transport/mqtt"
)

func buildPayload(key string, data astarte.AstarteData, ts *time.Time) ([]byte, error) {
	w := bson.NewWriter()
	if err := astarte.Encode(w, key, data); err != nil {
		return nil, err
	}
	if ts != nil {
		w.AppendDateTime("t", *ts)
	}
	return w.Finish(), nil
}

// SendIndividual publishes a single mapping value on an individual-
// aggregated interface, at the QoS its declared reliability implies.
func (d *Device) SendIndividual(interfaceName, path string, data astarte.AstarteData, ts *time.Time) error {
	const op = "device.Device.SendIndividual"
	if d.State() != Connected {
		return asterr.New(asterr.KindDeviceNotReady, op, nil)
	}
	if !strings.HasPrefix(path, "/") {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	iface := d.introspection.Lookup(interfaceName)
	if iface == nil {
		return asterr.New(asterr.KindNotFound, op, nil)
	}
	mapping, err := iface.LookupMapping(path)
	if err != nil {
		return err
	}
	payload, err := buildPayload("v", data, ts)
	if err != nil {
		return asterr.New(asterr.KindOf(err), op, err)
	}
	topic := mqtt.DataTopic(d.baseTopic, interfaceName, path)
	return d.adapter.Publish(topic, payload, mapping.Reliability.QoS(), false)
}

// SetProperty publishes a retained property value.
func (d *Device) SetProperty(interfaceName, path string, data astarte.AstarteData) error {
	const op = "device.Device.SetProperty"
	if d.State() != Connected {
		return asterr.New(asterr.KindDeviceNotReady, op, nil)
	}
	if !strings.HasPrefix(path, "/") {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	iface := d.introspection.Lookup(interfaceName)
	if iface == nil {
		return asterr.New(asterr.KindNotFound, op, nil)
	}
	mapping, err := iface.LookupMapping(path)
	if err != nil {
		return err
	}
	payload, err := buildPayload("v", data, nil)
	if err != nil {
		return asterr.New(asterr.KindOf(err), op, err)
	}
	topic := mqtt.DataTopic(d.baseTopic, interfaceName, path)
	return d.adapter.Publish(topic, payload, mapping.Reliability.QoS(), true)
}

// UnsetProperty publishes the zero-length payload that retracts a
// previously set property. Fails with KindInvalidParam if the mapping does
// not allow unset.
func (d *Device) UnsetProperty(interfaceName, path string) error {
	const op = "device.Device.UnsetProperty"
	if d.State() != Connected {
		return asterr.New(asterr.KindDeviceNotReady, op, nil)
	}
	if !strings.HasPrefix(path, "/") {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	iface := d.introspection.Lookup(interfaceName)
	if iface == nil {
		return asterr.New(asterr.KindNotFound, op, nil)
	}
	mapping, err := iface.LookupMapping(path)
	if err != nil {
		return err
	}
	if !mapping.AllowUnset {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	topic := mqtt.DataTopic(d.baseTopic, interfaceName, path)
	return d.adapter.Publish(topic, nil, mapping.Reliability.QoS(), true)
}

// SendObject publishes a bundle of entries under path on an
// object-aggregated interface. QoS follows the reliability declared by the
// mapping backing entries[0], per the invariant that all mappings of an
// object-aggregated interface share one QoS policy.
func (d *Device) SendObject(interfaceName, path string, entries []astarte.ObjectEntry, ts *time.Time) error {
	const op = "device.Device.SendObject"
	if d.State() != Connected {
		return asterr.New(asterr.KindDeviceNotReady, op, nil)
	}
	if !strings.HasPrefix(path, "/") {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	if len(entries) == 0 {
		return asterr.New(asterr.KindInvalidParam, op, nil)
	}
	iface := d.introspection.Lookup(interfaceName)
	if iface == nil {
		return asterr.New(asterr.KindNotFound, op, nil)
	}

	nested := bson.NewWriter()
	var qos byte
	for i, e := range entries {
		mapping, err := iface.LookupMapping(path + "/" + e.Segment)
		if err != nil {
			return err
		}
		if i == 0 {
			qos = mapping.Reliability.QoS()
		}
		if err := astarte.Encode(nested, e.Segment, e.Value); err != nil {
			return asterr.New(asterr.KindOf(err), op, err)
		}
	}

	w := bson.NewWriter()
	w.AppendDocument("v", nested.Finish())
	if ts != nil {
		w.AppendDateTime("t", *ts)
	}

	topic := mqtt.DataTopic(d.baseTopic, interfaceName, path)
	return d.adapter.Publish(topic, w.Finish(), qos, false)
}
