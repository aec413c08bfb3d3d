package cache_test

import (
	"context"
	"testing"

	"github.com/cirrus-iot/astarte-device-sdk/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNotFoundThenFreshThenOutdated(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()

	status, err := m.Check(ctx, "A:0:1;")
	require.NoError(t, err)
	assert.Equal(t, cache.NotFound, status)

	require.NoError(t, m.Store(ctx, "A:0:1;"))

	status, err = m.Check(ctx, "A:0:1;")
	require.NoError(t, err)
	assert.Equal(t, cache.Fresh, status)

	status, err = m.Check(ctx, "A:0:2;")
	require.NoError(t, err)
	assert.Equal(t, cache.Outdated, status)
}
