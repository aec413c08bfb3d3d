package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledServerStartReturnsImmediately(t *testing.T) {
	s := New("", func() Snapshot { return Snapshot{} }, nil)
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disabled server did not return immediately")
	}
}

func TestStatusEndpointServesSnapshot(t *testing.T) {
	s := New("127.0.0.1:18765", func() Snapshot {
		return Snapshot{State: "connected", Introspection: "org.example:0:1;", Connected: true}
	}, nil)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:18765/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "connected", snap.State)
	assert.True(t, snap.Connected)

	s.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not shut down")
	}
}
