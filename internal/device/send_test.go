package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/cache"
)

func connectedTestDevice(t *testing.T) (*Device, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	d := newTestDevice(t, ft, cache.NewMemory())
	ctx := context.Background()

	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)
	require.Equal(t, Connected, d.State())
	return d, ft
}

func TestSendIndividualRejectsWhenNotConnected(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDevice(t, ft, cache.NewMemory())
	err := d.SendIndividual("org.example.Temperature", "/value", astarte.FromDouble(1), nil)
	require.Error(t, err)
}

func TestSendIndividualPublishesToDataTopic(t *testing.T) {
	d, ft := connectedTestDevice(t)
	err := d.SendIndividual("org.example.Temperature", "/value", astarte.FromDouble(21.5), nil)
	require.NoError(t, err)

	published := ft.published()
	assert.Contains(t, published, "test/device1/org.example.Temperature/value")
}

func TestSendIndividualRejectsUnknownInterface(t *testing.T) {
	d, _ := connectedTestDevice(t)
	err := d.SendIndividual("org.example.Nope", "/value", astarte.FromDouble(1), nil)
	require.Error(t, err)
}

func TestSendIndividualRejectsPathWithoutLeadingSlash(t *testing.T) {
	d, _ := connectedTestDevice(t)
	err := d.SendIndividual("org.example.Temperature", "value", astarte.FromDouble(1), nil)
	require.Error(t, err)
	assert.Equal(t, asterr.KindInvalidParam, asterr.KindOf(err))
}

func TestSetPropertyRejectsPathWithoutLeadingSlash(t *testing.T) {
	d, _ := connectedTestDevice(t)
	err := d.SetProperty("org.example.Temperature", "value", astarte.FromDouble(1))
	require.Error(t, err)
	assert.Equal(t, asterr.KindInvalidParam, asterr.KindOf(err))
}

func TestUnsetPropertyRejectsPathWithoutLeadingSlash(t *testing.T) {
	d, _ := connectedTestDevice(t)
	err := d.UnsetProperty("org.example.Temperature", "value")
	require.Error(t, err)
	assert.Equal(t, asterr.KindInvalidParam, asterr.KindOf(err))
}

func TestSendObjectRejectsPathWithoutLeadingSlash(t *testing.T) {
	d, _ := connectedTestDevice(t)
	entries := []astarte.ObjectEntry{{Segment: "a", Value: astarte.FromDouble(1)}}
	err := d.SendObject("org.example.Temperature", "value", entries, nil)
	require.Error(t, err)
	assert.Equal(t, asterr.KindInvalidParam, asterr.KindOf(err))
}

func TestSetAndUnsetPropertyRoundTripThroughPublish(t *testing.T) {
	iface, err := astarte.NewInterface(
		"org.example.Config", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Properties,
		[]astarte.Mapping{
			{PathTemplate: "/name", Type: astarte.String, Reliability: astarte.Unique, AllowUnset: true},
		},
	)
	require.NoError(t, err)
	intro := astarte.NewIntrospection()
	intro.Add(iface)

	ft := &fakeTransport{}
	d := New(Config{Adapter: ft, Introspection: intro, Realm: "test", DeviceID: "device1"})
	ctx := context.Background()
	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)
	require.Equal(t, Connected, d.State())

	require.NoError(t, d.SetProperty("org.example.Config", "/name", astarte.FromString("bob")))
	require.NoError(t, d.UnsetProperty("org.example.Config", "/name"))
	assert.Contains(t, ft.published(), "test/device1/org.example.Config/name")
}

func TestUnsetPropertyRejectsMappingWithoutAllowUnset(t *testing.T) {
	iface, err := astarte.NewInterface(
		"org.example.Locked", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Properties,
		[]astarte.Mapping{
			{PathTemplate: "/name", Type: astarte.String, Reliability: astarte.Unique, AllowUnset: false},
		},
	)
	require.NoError(t, err)
	intro := astarte.NewIntrospection()
	intro.Add(iface)

	ft := &fakeTransport{}
	d := New(Config{Adapter: ft, Introspection: intro, Realm: "test", DeviceID: "device1"})
	ctx := context.Background()
	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)

	err = d.UnsetProperty("org.example.Locked", "/name")
	require.Error(t, err)
}

func TestSendObjectRejectsEmptyEntries(t *testing.T) {
	d, _ := connectedTestDevice(t)
	err := d.SendObject("org.example.Temperature", "/value", nil, nil)
	require.Error(t, err)
}

func TestSendObjectPublishesBundle(t *testing.T) {
	iface, err := astarte.NewInterface(
		"org.example.Bundle", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationObject, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/stats/a", Type: astarte.Double, Reliability: astarte.Unreliable},
			{PathTemplate: "/stats/b", Type: astarte.Double, Reliability: astarte.Unreliable},
		},
	)
	require.NoError(t, err)
	intro := astarte.NewIntrospection()
	intro.Add(iface)

	ft := &fakeTransport{}
	d := New(Config{Adapter: ft, Introspection: intro, Realm: "test", DeviceID: "device1"})
	ctx := context.Background()
	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)
	require.Equal(t, Connected, d.State())

	entries := []astarte.ObjectEntry{
		{Segment: "a", Value: astarte.FromDouble(1)},
		{Segment: "b", Value: astarte.FromDouble(2)},
	}
	require.NoError(t, d.SendObject("org.example.Bundle", "/stats", entries, nil))
	assert.Contains(t, ft.published(), "test/device1/org.example.Bundle/stats")
}
