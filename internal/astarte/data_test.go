package astarte_test

import (
	"testing"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v astarte.AstarteData) astarte.AstarteData {
	t.Helper()
	w := bson.NewWriter()
	require.NoError(t, astarte.Encode(w, "v", v))
	doc := w.Finish()

	r, err := bson.NewReader(doc)
	require.NoError(t, err)
	el, err := r.Find("v")
	require.NoError(t, err)

	got, err := astarte.Decode(el, v.Kind())
	require.NoError(t, err)
	return got
}

func TestRoundTripEveryScalarKind(t *testing.T) {
	ts := time.UnixMilli(1690000000000).UTC()
	cases := []astarte.AstarteData{
		astarte.FromInteger(42),
		astarte.FromLongInteger(1 << 40),
		astarte.FromDouble(2.5),
		astarte.FromString("hello"),
		astarte.FromBoolean(true),
		astarte.FromBinaryBlob([]byte{1, 2, 3}),
		astarte.FromDateTime(ts),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		assert.True(t, astarte.Equal(v, got), "kind %s", v.Kind())
	}
}

func TestRoundTripEveryArrayKind(t *testing.T) {
	ts := time.UnixMilli(1690000000000).UTC()
	cases := []astarte.AstarteData{
		astarte.FromIntegerArray([]int32{1, 2, 3}),
		astarte.FromLongIntegerArray([]int64{1 << 40, 2}),
		astarte.FromDoubleArray([]float64{1.5, 2.5}),
		astarte.FromStringArray([]string{"a", "b"}),
		astarte.FromBooleanArray([]bool{true, false}),
		astarte.FromBinaryBlobArray([][]byte{{1}, {2, 3}}),
		astarte.FromDateTimeArray([]time.Time{ts, ts}),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		assert.True(t, astarte.Equal(v, got), "kind %s", v.Kind())
	}
}

func TestEmptyArrayRoundTrip(t *testing.T) {
	v := astarte.FromIntegerArray([]int32{})
	got := roundTrip(t, v)
	arr, ok := got.IntegerArray()
	require.True(t, ok)
	assert.Empty(t, arr)
}

func TestZeroLengthBlobRoundTrip(t *testing.T) {
	v := astarte.FromBinaryBlob([]byte{})
	got := roundTrip(t, v)
	assert.True(t, astarte.Equal(v, got))
}

func TestInt32WidensToLongInteger(t *testing.T) {
	w := bson.NewWriter()
	w.AppendInt32("v", 7)
	doc := w.Finish()

	r, err := bson.NewReader(doc)
	require.NoError(t, err)
	el, err := r.Find("v")
	require.NoError(t, err)

	got, err := astarte.Decode(el, astarte.LongInteger)
	require.NoError(t, err)
	n, ok := got.LongInteger()
	require.True(t, ok)
	assert.EqualValues(t, 7, n)
}

func TestDecodeTypeMismatch(t *testing.T) {
	w := bson.NewWriter()
	w.AppendString("v", "not an int")
	doc := w.Finish()

	r, err := bson.NewReader(doc)
	require.NoError(t, err)
	el, err := r.Find("v")
	require.NoError(t, err)

	_, err = astarte.Decode(el, astarte.Integer)
	assert.Error(t, err)
}
