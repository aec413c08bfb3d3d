// Package harness implements the end-to-end shell surface: expect_*/send_*
// commands that drive the expectation queue and a Device's publish API, one
// Go function per command.
package harness

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
	"github.com/cirrus-iot/astarte-device-sdk/internal/device"
)

// Harness wires shell commands to one device's introspection, expectation
// queues, and publish API.
type Harness struct {
	device *device.Device
	intro  *astarte.Introspection
}

// New builds a Harness over dev, using intro to resolve interface/mapping
// lookups for every command (the same introspection dev itself was
// constructed with).
func New(dev *device.Device, intro *astarte.Introspection) *Harness {
	return &Harness{device: dev, intro: intro}
}

func (h *Harness) lookup(ifaceName, path string) (*astarte.Interface, *astarte.Mapping, error) {
	const op = "harness.Harness.lookup"
	iface := h.intro.Lookup(ifaceName)
	if iface == nil {
		return nil, nil, asterr.New(asterr.KindNotFound, op, fmt.Errorf("unknown interface %q", ifaceName))
	}
	mapping, err := iface.LookupMapping(path)
	if err != nil {
		return nil, nil, err
	}
	return iface, mapping, nil
}

// decodeIndividual parses base64 BSON of the shape {"v": <value>} and
// returns the typed value for mapping.
func decodeIndividual(b64 string, mapping *astarte.Mapping) (astarte.AstarteData, error) {
	const op = "harness.decodeIndividual"
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return astarte.AstarteData{}, asterr.New(asterr.KindInvalidParam, op, err)
	}
	reader, err := bson.NewReader(raw)
	if err != nil {
		return astarte.AstarteData{}, err
	}
	vElem, err := reader.Find("v")
	if err != nil {
		return astarte.AstarteData{}, err
	}
	return astarte.Decode(vElem, mapping.Type)
}

// decodeObject parses base64 BSON of the shape {"v": {<segment>: <value>,
// ...}} and returns one ObjectEntry per field, resolving each field's type
// via iface's mapping for path+"/"+segment.
func decodeObject(b64 string, iface *astarte.Interface, path string) ([]astarte.ObjectEntry, error) {
	const op = "harness.decodeObject"
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, asterr.New(asterr.KindInvalidParam, op, err)
	}
	reader, err := bson.NewReader(raw)
	if err != nil {
		return nil, err
	}
	vElem, err := reader.Find("v")
	if err != nil {
		return nil, err
	}
	nested, err := vElem.Document()
	if err != nil {
		return nil, err
	}

	var entries []astarte.ObjectEntry
	el, ok, err := nested.First()
	for ok {
		if err != nil {
			return nil, err
		}
		mapping, err := iface.LookupMapping(path + "/" + el.Key)
		if err != nil {
			return nil, err
		}
		value, err := astarte.Decode(el, mapping.Type)
		if err != nil {
			return nil, err
		}
		entries = append(entries, astarte.ObjectEntry{Segment: el.Key, Value: value})
		el, ok, err = nested.Next(el)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ExpectIndividual enqueues an expected individual-datastream value for
// later comparison against what the device's inbound dispatch actually
// receives.
func (h *Harness) ExpectIndividual(ifaceName, path, b64 string, ts *time.Time) error {
	_, mapping, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	data, err := decodeIndividual(b64, mapping)
	if err != nil {
		return err
	}
	return h.device.Expectations.AddIndividual(ifaceName, path, data, ts)
}

// ExpectObject enqueues an expected object-aggregated publish.
func (h *Harness) ExpectObject(ifaceName, path, b64 string, ts *time.Time) error {
	iface, _, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	entries, err := decodeObject(b64, iface, path)
	if err != nil {
		return err
	}
	return h.device.Expectations.AddObject(ifaceName, path, entries, nil, ts)
}

// ExpectPropertySet enqueues an expected property-set value.
func (h *Harness) ExpectPropertySet(ifaceName, path, b64 string) error {
	_, mapping, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	data, err := decodeIndividual(b64, mapping)
	if err != nil {
		return err
	}
	return h.device.Expectations.AddPropertySet(ifaceName, path, data)
}

// ExpectPropertyUnset enqueues an expected property-unset event.
func (h *Harness) ExpectPropertyUnset(ifaceName, path string) error {
	if _, _, err := h.lookup(ifaceName, path); err != nil {
		return err
	}
	return h.device.Expectations.AddPropertyUnset(ifaceName, path)
}

// SendIndividual decodes b64 and publishes it as an individual-datastream
// value.
func (h *Harness) SendIndividual(ifaceName, path, b64 string, ts *time.Time) error {
	_, mapping, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	data, err := decodeIndividual(b64, mapping)
	if err != nil {
		return err
	}
	return h.device.SendIndividual(ifaceName, path, data, ts)
}

// SendObject decodes b64 and publishes it as an object-aggregated bundle.
func (h *Harness) SendObject(ifaceName, path, b64 string, ts *time.Time) error {
	iface, _, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	entries, err := decodeObject(b64, iface, path)
	if err != nil {
		return err
	}
	return h.device.SendObject(ifaceName, path, entries, ts)
}

// SendPropertySet decodes b64 and publishes a retained property value.
func (h *Harness) SendPropertySet(ifaceName, path, b64 string) error {
	_, mapping, err := h.lookup(ifaceName, path)
	if err != nil {
		return err
	}
	data, err := decodeIndividual(b64, mapping)
	if err != nil {
		return err
	}
	return h.device.SetProperty(ifaceName, path, data)
}

// SendPropertyUnset retracts a previously set property.
func (h *Harness) SendPropertyUnset(ifaceName, path string) error {
	if _, _, err := h.lookup(ifaceName, path); err != nil {
		return err
	}
	return h.device.UnsetProperty(ifaceName, path)
}

// Disconnect tears down the device's MQTT connection.
func (h *Harness) Disconnect() error {
	return h.device.Disconnect()
}
