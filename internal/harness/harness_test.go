package harness

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
	"github.com/cirrus-iot/astarte-device-sdk/internal/device"
	"github.com/cirrus-iot/astarte-device-sdk/internal/expectation"
)

// noopTransport satisfies device.Transport doing nothing; harness tests
// only exercise expectation-queue writes and the lookup/decode path, not
// the connection FSM itself.
type noopTransport struct{}

func (noopTransport) Connect() error                                 { return nil }
func (noopTransport) Disconnect(time.Duration)                       {}
func (noopTransport) Subscribe(string, byte) error                   { return nil }
func (noopTransport) Publish(string, []byte, byte, bool) error       { return nil }
func (noopTransport) HasPendingOutgoing() bool                       { return false }
func (noopTransport) IsConnected() bool                              { return false }
func (noopTransport) SetOnConnected(func(bool))                      {}
func (noopTransport) SetOnDisconnected(func())                       {}
func (noopTransport) SetOnSubscribed(func(uint32, byte))             {}
func (noopTransport) SetOnMessage(func(string, []byte))              {}

func testIntrospection(t *testing.T) *astarte.Introspection {
	t.Helper()
	individual, err := astarte.NewInterface(
		"org.example.Sensor", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/value", Type: astarte.Double, Reliability: astarte.Unreliable},
		},
	)
	require.NoError(t, err)

	object, err := astarte.NewInterface(
		"org.example.Aggregate", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationObject, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/bundle/a", Type: astarte.Double, Reliability: astarte.Unreliable},
			{PathTemplate: "/bundle/b", Type: astarte.String, Reliability: astarte.Unreliable},
		},
	)
	require.NoError(t, err)

	property, err := astarte.NewInterface(
		"org.example.Config", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Properties,
		[]astarte.Mapping{
			{PathTemplate: "/name", Type: astarte.String, Reliability: astarte.Unique, AllowUnset: true},
		},
	)
	require.NoError(t, err)

	intro := astarte.NewIntrospection()
	intro.Add(individual)
	intro.Add(object)
	intro.Add(property)
	return intro
}

func encodeIndividualB64(t *testing.T, data astarte.AstarteData) string {
	t.Helper()
	w := bson.NewWriter()
	require.NoError(t, astarte.Encode(w, "v", data))
	return base64.StdEncoding.EncodeToString(w.Finish())
}

func encodeObjectB64(t *testing.T, entries map[string]astarte.AstarteData) string {
	t.Helper()
	nested := bson.NewWriter()
	for k, v := range entries {
		require.NoError(t, astarte.Encode(nested, k, v))
	}
	w := bson.NewWriter()
	w.AppendDocument("v", nested.Finish())
	return base64.StdEncoding.EncodeToString(w.Finish())
}

func newTestHarness(t *testing.T) (*harnessFixture, *astarte.Introspection) {
	t.Helper()
	intro := testIntrospection(t)
	dev := device.New(device.Config{
		Adapter:       noopTransport{},
		Introspection: intro,
		Realm:         "test",
		DeviceID:      "device1",
	})
	return &harnessFixture{Harness: New(dev, intro), dev: dev}, intro
}

type harnessFixture struct {
	*Harness
	dev *device.Device
}

func TestExpectIndividualEnqueues(t *testing.T) {
	h, _ := newTestHarness(t)
	b64 := encodeIndividualB64(t, astarte.FromDouble(3.5))

	require.NoError(t, h.ExpectIndividual("org.example.Sensor", "/value", b64, nil))
	assert.Equal(t, 1, h.dev.Expectations.Count("org.example.Sensor"))

	msg, err := h.dev.Expectations.Pop("org.example.Sensor")
	require.NoError(t, err)
	assert.Equal(t, expectation.Individual, msg.Kind)
	v, ok := msg.Data.Double()
	require.True(t, ok)
	assert.Equal(t, 3.5, v)
}

func TestExpectIndividualRejectsUnknownInterface(t *testing.T) {
	h, _ := newTestHarness(t)
	b64 := encodeIndividualB64(t, astarte.FromDouble(1))
	err := h.ExpectIndividual("org.example.Nope", "/value", b64, nil)
	require.Error(t, err)
}

func TestExpectObjectEnqueuesAllEntries(t *testing.T) {
	h, _ := newTestHarness(t)
	b64 := encodeObjectB64(t, map[string]astarte.AstarteData{
		"a": astarte.FromDouble(1.5),
		"b": astarte.FromString("hi"),
	})

	require.NoError(t, h.ExpectObject("org.example.Aggregate", "/bundle", b64, nil))
	msg, err := h.dev.Expectations.Pop("org.example.Aggregate")
	require.NoError(t, err)
	assert.Len(t, msg.Entries, 2)
}

func TestExpectPropertySetAndUnset(t *testing.T) {
	h, _ := newTestHarness(t)
	b64 := encodeIndividualB64(t, astarte.FromString("bob"))

	require.NoError(t, h.ExpectPropertySet("org.example.Config", "/name", b64))
	require.NoError(t, h.ExpectPropertyUnset("org.example.Config", "/name"))
	assert.Equal(t, 2, h.dev.Expectations.Count("org.example.Config"))
}

func TestSendIndividualFailsWhenDeviceNotConnected(t *testing.T) {
	h, _ := newTestHarness(t)
	b64 := encodeIndividualB64(t, astarte.FromDouble(1))
	err := h.SendIndividual("org.example.Sensor", "/value", b64, nil)
	require.Error(t, err)
}

func TestDisconnectWhenAlreadyDisconnectedErrors(t *testing.T) {
	h, _ := newTestHarness(t)
	err := h.Disconnect()
	require.Error(t, err)
}
