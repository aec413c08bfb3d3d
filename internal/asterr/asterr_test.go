package asterr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

func TestErrorFormatsWithAndWithoutWrapped(t *testing.T) {
	withWrap := asterr.New(asterr.KindMQTT, "device.Connect", errors.New("broker refused"))
	assert.Equal(t, "device.Connect: mqtt: broker refused", withWrap.Error())

	bare := asterr.New(asterr.KindQueueFull, "expectation.Add", nil)
	assert.Equal(t, "expectation.Add: queue_full", bare.Error())
}

func TestUnwrapReturnsWrappedError(t *testing.T) {
	wrapped := errors.New("dial tcp: timeout")
	err := asterr.New(asterr.KindSocket, "transport.mqtt.Connect", wrapped)
	assert.ErrorIs(t, err, wrapped)
}

func TestIsComparesKindNotMessage(t *testing.T) {
	a := asterr.New(asterr.KindNotFound, "a.Op", errors.New("x"))
	b := asterr.New(asterr.KindNotFound, "b.Op", errors.New("y"))
	c := asterr.New(asterr.KindInternal, "c.Op", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOfExtractsKindOrFallsBackToInternal(t *testing.T) {
	assert.Equal(t, asterr.KindBSONInvalid, asterr.KindOf(asterr.New(asterr.KindBSONInvalid, "bson.NewReader", nil)))
	assert.Equal(t, asterr.KindInternal, asterr.KindOf(errors.New("not ours")))
	assert.Equal(t, asterr.KindOK, asterr.KindOf(nil))
}

func TestKindStringCoversKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "device_not_ready", asterr.KindDeviceNotReady.String())
	assert.Equal(t, "unknown", asterr.Kind(9999).String())
}
