package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmeaflow/internal/nmea"
)

func TestVessel_PositionInvariants(t *testing.T) {
	v := Vessel{CenterLatDeg: 45.0, CenterLonDeg: -122.0, RadiusNm: 1.0, Period: time.Minute}
	start := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)

	radiusDeg := v.RadiusNm / 60.0
	maxLonDeg := radiusDeg / math.Cos(v.CenterLatDeg*math.Pi/180.0)
	for i := 0; i < 60; i++ {
		lat, lon, cog, sog := v.Position(start.Add(time.Duration(i) * time.Second))
		for _, x := range []float64{lat, lon, cog, sog} {
			require.False(t, math.IsNaN(x) || math.IsInf(x, 0))
		}
		assert.LessOrEqual(t, math.Abs(lat-v.CenterLatDeg), radiusDeg*1.01)
		assert.LessOrEqual(t, math.Abs(lon-v.CenterLonDeg), maxLonDeg*1.01)
		assert.True(t, cog >= 0 && cog < 360, "cog=%v", cog)
		assert.Greater(t, sog, 0.0)
	}

	// Deterministic for a given time.
	a1, b1, c1, d1 := v.Position(start)
	a2, b2, c2, d2 := v.Position(start)
	assert.Equal(t, []float64{a1, b1, c1, d1}, []float64{a2, b2, c2, d2})
}

func TestVessel_SentencesParse(t *testing.T) {
	v := Vessel{CenterLatDeg: -33.86, CenterLonDeg: 151.21, MagVariation: 12.5}
	now := time.Date(2025, 3, 1, 8, 30, 15, 250_000_000, time.UTC)

	lines := v.Sentences(now)
	require.Len(t, lines, 8)
	types := make(map[string]int)
	for _, l := range lines {
		s, err := nmea.ParseLine(l)
		require.NoError(t, err, "line=%s", l)
		types[s.Type()]++
	}
	assert.Equal(t, map[string]int{"RMC": 1, "GGA": 1, "VTG": 1, "HDT": 1, "DBT": 1, "MWV": 2, "MTW": 1}, types)

	lat, lon, _, sog := v.Position(now)
	gga, err := nmea.ParseLine(lines[1])
	require.NoError(t, err)
	pos := gga.(nmea.GGA).Position
	require.NotNil(t, pos)
	assert.InDelta(t, lat, pos.LatDeg, 1e-5)
	assert.InDelta(t, lon, pos.LonDeg, 1e-5)

	rmc, err := nmea.ParseLine(lines[0])
	require.NoError(t, err)
	r := rmc.(nmea.RMC)
	assert.True(t, r.Valid)
	require.NotNil(t, r.SpeedKnots)
	assert.InDelta(t, sog, *r.SpeedKnots, 0.051)
	require.NotNil(t, r.Variation)
	assert.InDelta(t, 12.5, *r.Variation, 1e-9)
	assert.Equal(t, "010325", r.Date)
	assert.Equal(t, "083015.25", r.Time)
}

func TestDegMinCarries(t *testing.T) {
	d, m := degMin(10.99999999)
	assert.Equal(t, 11, d)
	assert.Equal(t, 0.0, m)

	s, h := fmtLon(-5.5)
	assert.Equal(t, "00530.0000", s)
	assert.Equal(t, "W", h)
}
