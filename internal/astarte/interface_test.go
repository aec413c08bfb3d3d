package astarte_test

import (
	"testing"

	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupExactMatch(t *testing.T) {
	iface, err := astarte.NewInterface("org.example.Sensors", 0, 1, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, []astarte.Mapping{
		{PathTemplate: "/value", Type: astarte.Double},
	})
	require.NoError(t, err)

	m, err := iface.LookupMapping("/value")
	require.NoError(t, err)
	assert.Equal(t, astarte.Double, m.Type)

	_, err = iface.LookupMapping("/missing")
	assert.Equal(t, asterr.KindNotFound, asterr.KindOf(err))
}

func TestLookupParametricSegment(t *testing.T) {
	iface, err := astarte.NewInterface("org.example.Sensors", 0, 1, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, []astarte.Mapping{
		{PathTemplate: "/sensors/%{id}/value", Type: astarte.Double},
	})
	require.NoError(t, err)

	_, err = iface.LookupMapping("/sensors/42/value")
	assert.NoError(t, err)

	_, err = iface.LookupMapping("/sensors/42")
	assert.Error(t, err)

	_, err = iface.LookupMapping("/sensors/42/value/extra")
	assert.Error(t, err)
}

func TestAmbiguousTemplatesRejectedAtConstruction(t *testing.T) {
	_, err := astarte.NewInterface("org.example.Sensors", 0, 1, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, []astarte.Mapping{
		{PathTemplate: "/sensors/%{id}/value", Type: astarte.Double},
		{PathTemplate: "/sensors/42/value", Type: astarte.Double},
	})
	assert.Equal(t, asterr.KindInvalidParam, asterr.KindOf(err))
}

func TestDisjointLiteralTemplatesAllowed(t *testing.T) {
	_, err := astarte.NewInterface("org.example.Sensors", 0, 1, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, []astarte.Mapping{
		{PathTemplate: "/sensors/a/value", Type: astarte.Double},
		{PathTemplate: "/sensors/b/value", Type: astarte.Double},
	})
	assert.NoError(t, err)
}

func TestIntrospectionString(t *testing.T) {
	a, err := astarte.NewInterface("A", 0, 1, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, nil)
	require.NoError(t, err)
	b, err := astarte.NewInterface("B", 1, 0, astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream, nil)
	require.NoError(t, err)

	in := astarte.NewIntrospection()
	in.Add(a)
	in.Add(b)

	assert.Equal(t, "A:0:1;B:1:0;", in.String())
	assert.Equal(t, len("A:0:1;B:1:0;")+1, in.ByteSize())
}
