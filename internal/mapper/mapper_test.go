package mapper

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmeaflow/internal/nmea"
	"nmeaflow/internal/store"
)

func f(v float64) *float64 { return &v }

func mapLine(t *testing.T, line string) map[store.Field]store.Value {
	t.Helper()
	s, err := nmea.ParseLine(line)
	require.NoError(t, err)
	out := make(map[store.Field]store.Value)
	for _, u := range Map(s) {
		out[u.Field] = u.Value
	}
	return out
}

func requireScalar(t *testing.T, got map[store.Field]store.Value, field store.Field, want float64, unit string) {
	t.Helper()
	v, ok := got[field]
	require.True(t, ok, "missing %s", field)
	s, ok := v.(store.Scalar)
	require.True(t, ok, "%s is %T", field, v)
	assert.InDelta(t, want, s.V, 1e-3, "field %s", field)
	assert.Equal(t, unit, s.Unit, "field %s", field)
}

func TestFixOrdinal(t *testing.T) {
	cases := map[string]int{
		nmea.FixGPS:        1,
		nmea.FixDGPS:       2,
		nmea.FixNone:       0,
		nmea.FixRTK:        0,
		nmea.FixPPS:        0,
		nmea.FixSimulation: 0,
		nmea.FixUnknown:    0,
		"":                 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, FixOrdinal(in), "fix type %q", in)
	}
}

func TestMap_GGA(t *testing.T) {
	got := mapLine(t, "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	pos, ok := got[store.FieldGPSPosition].(store.Position)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, pos.LatDeg, 1e-4)

	q, ok := got[store.FieldGPSQuality].(store.FixQuality)
	require.True(t, ok)
	assert.Equal(t, 1, q.FixType)
	require.NotNil(t, q.Satellites)
	assert.Equal(t, 8, *q.Satellites)
	requireScalar(t, got, store.FieldGPSAltitude, 545.4, store.UnitMeters)
}

func TestMap_GGADifferentialAndRTK(t *testing.T) {
	dgps := mapLine(t, nmea.Format("GPGGA", "123519", "4807.038", "N", "01131.000", "E", "2", "08", "0.9", "545.4", "M", "46.9", "M", "", ""))
	assert.Equal(t, 2, dgps[store.FieldGPSQuality].(store.FixQuality).FixType)

	rtk := mapLine(t, nmea.Format("GPGGA", "123519", "4807.038", "N", "01131.000", "E", "4", "08", "0.9", "545.4", "M", "46.9", "M", "", ""))
	assert.Equal(t, 0, rtk[store.FieldGPSQuality].(store.FixQuality).FixType)
}

func TestMap_VTG(t *testing.T) {
	got := mapLine(t, nmea.Format("GPVTG", "054.7", "T", "034.4", "M", "005.5", "N", "010.2", "K"))
	requireScalar(t, got, store.FieldSpeed, 5.5, store.UnitKnots)
	requireScalar(t, got, store.FieldCourse, 54.7, store.UnitDegrees)
	assert.Len(t, got, 2)
}

func TestMap_DBTUnits(t *testing.T) {
	got := mapLine(t, nmea.Format("SDDBT", "036.4", "f", "11.1", "M", "06.0", "F"))
	requireScalar(t, got, store.FieldDepth, 11.1, store.UnitMeters)

	got = mapLine(t, nmea.Format("SDDBT", "10.0", "f", "", "M", "", "F"))
	requireScalar(t, got, store.FieldDepth, 3.048, store.UnitMeters)

	got = mapLine(t, nmea.Format("SDDBT", "", "f", "", "M", "2.0", "F"))
	requireScalar(t, got, store.FieldDepth, 3.6576, store.UnitMeters)
}

func TestMap_MWV(t *testing.T) {
	rel := mapLine(t, nmea.Format("WIMWV", "045.0", "R", "10.0", "M", "A"))
	requireScalar(t, rel, store.FieldWindAngle, 45, store.UnitDegreesRelative)
	requireScalar(t, rel, store.FieldWindSpeed, 19.438, store.UnitKnots)

	tru := mapLine(t, nmea.Format("WIMWV", "270.0", "T", "18.52", "K", "A"))
	requireScalar(t, tru, store.FieldWindAngleTrue, 270, store.UnitDegreesTrue)
	requireScalar(t, tru, store.FieldWindSpeedTrue, 10, store.UnitKnots)
	assert.NotContains(t, tru, store.FieldWindAngle)

	void := mapLine(t, nmea.Format("WIMWV", "045.0", "R", "10.0", "N", "V"))
	assert.Empty(t, void)
}

func TestMap_RMC(t *testing.T) {
	got := mapLine(t, nmea.Format("GPRMC", "123519", "A", "4807.038", "N", "01131.000", "E", "022.4", "084.4", "230394", "003.1", "W"))
	requireScalar(t, got, store.FieldSpeed, 22.4, store.UnitKnots)
	requireScalar(t, got, store.FieldCourse, 84.4, store.UnitDegrees)
	requireScalar(t, got, store.FieldMagneticVariation, -3.1, store.UnitDegrees)
	assert.Contains(t, got, store.FieldGPSPosition)

	void := mapLine(t, nmea.Format("GPRMC", "123519", "V", "4807.038", "N", "01131.000", "E", "022.4", "084.4", "230394", "", ""))
	assert.Empty(t, void)
}

func TestMap_Headings(t *testing.T) {
	hdt := mapLine(t, nmea.Format("HEHDT", "274.07", "T"))
	requireScalar(t, hdt, store.FieldHeading, 274.07, store.UnitDegrees)

	hdm := mapLine(t, nmea.Format("HCHDM", "238.5", "M"))
	requireScalar(t, hdm, store.FieldHeadingMagnetic, 238.5, store.UnitDegrees)
	assert.NotContains(t, hdm, store.FieldHeading)

	hdg := mapLine(t, nmea.Format("HCHDG", "5.0", "", "", "10.0", "W"))
	requireScalar(t, hdg, store.FieldHeadingMagnetic, 5, store.UnitDegrees)
	requireScalar(t, hdg, store.FieldMagneticVariation, -10, store.UnitDegrees)
	requireScalar(t, hdg, store.FieldHeading, 355, store.UnitDegrees)

	bare := mapLine(t, nmea.Format("HCHDG", "98.3", "", "", "", ""))
	assert.Len(t, bare, 1)
}

func TestMap_HeadingOutsideParserRange(t *testing.T) {
	cases := []struct {
		name    string
		heading float64
		want    float64
		dropped bool
	}{
		{"Negative", -10, 351, false},
		{"Wraps", 725, 6, false},
		{"Huge", 1e300, 0, false},
		{"Inf", math.Inf(1), 0, true},
		{"NaN", math.NaN(), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			done := make(chan []store.FieldUpdate, 1)
			go func() { done <- Map(nmea.HDG{Heading: tc.heading, Variation: f(1)}) }()
			var updates []store.FieldUpdate
			select {
			case updates = <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Map did not return")
			}

			got := make(map[store.Field]store.Value)
			for _, u := range updates {
				s, ok := u.Value.(store.Scalar)
				require.True(t, ok)
				assert.False(t, math.IsNaN(s.V) || math.IsInf(s.V, 0), "field %s = %v", u.Field, s.V)
				got[u.Field] = u.Value
			}
			if tc.dropped {
				assert.NotContains(t, got, store.FieldHeading)
				return
			}
			h := got[store.FieldHeading].(store.Scalar).V
			assert.GreaterOrEqual(t, h, 0.0)
			assert.Less(t, h, 360.0)
			if tc.name != "Huge" {
				assert.InDelta(t, tc.want, h, 1e-9)
			}
		})
	}
}

func TestMap_WaterSpeedAndTemperature(t *testing.T) {
	vhw := mapLine(t, nmea.Format("VWVHW", "", "T", "", "M", "6.1", "N", "11.3", "K"))
	requireScalar(t, vhw, store.FieldSpeedThroughWater, 6.1, store.UnitKnots)
	assert.Len(t, vhw, 1)

	mtw := mapLine(t, nmea.Format("YXMTW", "17.9", "C"))
	requireScalar(t, mtw, store.FieldWaterTemperature, 17.9, store.UnitCelsius)

	mtwF := mapLine(t, nmea.Format("YXMTW", "68.0", "F"))
	requireScalar(t, mtwF, store.FieldWaterTemperature, 20, store.UnitCelsius)
}

func TestMap_DPTOffset(t *testing.T) {
	got, err := MapChecked(nmea.DPT{DepthMeters: 10, Offset: f(0.5)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 10.5, got[0].Value.(store.Scalar).V, 1e-9)

	got, err = MapChecked(nmea.DPT{DepthMeters: 10, Offset: f(-1.5)})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got[0].Value.(store.Scalar).V, 1e-9)
}

type unknownSentence struct{ nmea.Header }

func TestMapChecked_Unmapped(t *testing.T) {
	_, err := MapChecked(unknownSentence{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnmappedSentence))

	assert.Panics(t, func() { Map(unknownSentence{}) })
}
