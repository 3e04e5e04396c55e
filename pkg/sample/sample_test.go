package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 10.5, -10.5, 123.456, 0.001, -0.001, 999999}
	for _, v := range cases {
		s := Pack(v, FlagNone)
		got, flags := Unpack(s)
		assert.InDelta(t, v, got, 0.001*math.Abs(v)+1e-6, "value %v", v)
		assert.Equal(t, FlagNone, flags&FlagReset, "unexpected reset for %v", v)
	}
}

func TestFlagsSurviveRoundTrip(t *testing.T) {
	s := Pack(42.0, FlagAnomalous)
	_, flags := Unpack(s)
	assert.True(t, flags&FlagAnomalous != 0)
	assert.True(t, IsAnomalous(s))
}

func TestEmptyIsDistinguishable(t *testing.T) {
	assert.True(t, IsEmpty(Empty))
	assert.False(t, IsEmpty(Pack(0.0, FlagNone)))
	assert.False(t, IsAnomalous(Empty))
}

func TestNaNAndInfMapToEmpty(t *testing.T) {
	require.True(t, IsEmpty(Pack(math.NaN(), FlagNone)))
	require.True(t, IsEmpty(Pack(math.Inf(1), FlagNone)))
	require.True(t, IsEmpty(Pack(math.Inf(-1), FlagNone)))
}

func TestOutOfRangeClampsAndSetsReset(t *testing.T) {
	s := Pack(1e30, FlagNone)
	_, flags := Unpack(s)
	assert.True(t, flags&FlagReset != 0)
}
