package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirrus-iot/astarte-device-sdk/internal/cache"
)

func TestSnapshotReflectsCurrentState(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDevice(t, ft, cache.NewMemory())
	ctx := context.Background()

	snap := d.Snapshot()
	assert.Equal(t, "disconnected", snap.State)
	assert.False(t, snap.Connected)

	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)

	snap = d.Snapshot()
	assert.Equal(t, "connected", snap.State)
	assert.True(t, snap.Connected)
	assert.NotEmpty(t, snap.Introspection)
}

func TestSnapshotReportsLastErrorAfterSubscriptionFailure(t *testing.T) {
	ft := &fakeTransport{failNextSubscribe: true}
	d := newTestDevice(t, ft, cache.NewMemory())
	ctx := context.Background()

	require.NoError(t, d.Connect())
	ft.onConnected(false)
	d.Tick(ctx)
	d.Tick(ctx)

	snap := d.Snapshot()
	assert.Equal(t, "handshake_error", snap.State)
	assert.NotEmpty(t, snap.LastError)
}
