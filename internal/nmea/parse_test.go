package nmea

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) Sentence {
	t.Helper()
	s, err := ParseLine(line)
	require.NoError(t, err, "line=%s", line)
	return s
}

func TestParse_GGA(t *testing.T) {
	s := mustParse(t, "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	gga, ok := s.(GGA)
	require.True(t, ok, "got %T", s)

	assert.Equal(t, "GP", gga.Talker())
	assert.Equal(t, TypeGGA, gga.Type())
	require.NotNil(t, gga.Position)
	assert.InDelta(t, 48.1173, gga.Position.LatDeg, 1e-4)
	assert.InDelta(t, 11.516667, gga.Position.LonDeg, 1e-4)
	assert.Equal(t, FixGPS, gga.FixType)
	require.NotNil(t, gga.Satellites)
	assert.Equal(t, 8, *gga.Satellites)
	require.NotNil(t, gga.HDOP)
	assert.InDelta(t, 0.9, *gga.HDOP, 1e-9)
	require.NotNil(t, gga.AltitudeMeters)
	assert.InDelta(t, 545.4, *gga.AltitudeMeters, 1e-9)
	assert.Nil(t, gga.DGPSAge)
}

func TestParse_GGAOptionalFieldsEmpty(t *testing.T) {
	s := mustParse(t, Format("GNGGA", "123519", "4807.038", "S", "01131.000", "W", "2", "", "", "", "M", "", "M", "", ""))
	gga := s.(GGA)
	assert.Equal(t, FixDGPS, gga.FixType)
	assert.Nil(t, gga.Satellites)
	assert.Nil(t, gga.HDOP)
	assert.Nil(t, gga.AltitudeMeters)
	require.NotNil(t, gga.Position)
	assert.Less(t, gga.Position.LatDeg, 0.0)
	assert.Less(t, gga.Position.LonDeg, 0.0)
}

func TestParse_GGANoFix(t *testing.T) {
	s := mustParse(t, Format("GPGGA", "", "", "", "", "", "0", "00", "99.99", "", "", "", "", "", ""))
	gga := s.(GGA)
	assert.Nil(t, gga.Position)
	assert.Equal(t, FixNone, gga.FixType)
}

func TestParse_GGAFixTypes(t *testing.T) {
	cases := map[string]string{
		"0": FixNone,
		"1": FixGPS,
		"2": FixDGPS,
		"4": FixRTK,
		"8": FixSimulation,
		"9": FixUnknown,
		"":  "",
	}
	for q, want := range cases {
		s := mustParse(t, Format("GPGGA", "123519", "4807.038", "N", "01131.000", "E", q, "08", "0.9", "545.4", "M", "46.9", "M", "", ""))
		assert.Equal(t, want, s.(GGA).FixType, "quality=%q", q)
	}
}

func TestParse_VTG(t *testing.T) {
	s := mustParse(t, Format("GPVTG", "054.7", "T", "034.4", "M", "005.5", "N", "010.2", "K", "A"))
	vtg := s.(VTG)
	assert.InDelta(t, 5.5, vtg.SpeedKnots, 1e-9)
	require.NotNil(t, vtg.TrackTrue)
	assert.InDelta(t, 54.7, *vtg.TrackTrue, 1e-9)
	require.NotNil(t, vtg.SpeedKPH)
	assert.InDelta(t, 10.2, *vtg.SpeedKPH, 1e-9)
	assert.Equal(t, "A", vtg.Mode)
}

func TestParse_RMC(t *testing.T) {
	s := mustParse(t, Format("GPRMC", "123519", "A", "4807.038", "N", "01131.000", "E", "022.4", "084.4", "230394", "003.1", "W"))
	rmc := s.(RMC)
	assert.True(t, rmc.Valid)
	require.NotNil(t, rmc.SpeedKnots)
	assert.InDelta(t, 22.4, *rmc.SpeedKnots, 1e-9)
	require.NotNil(t, rmc.Variation)
	assert.InDelta(t, -3.1, *rmc.Variation, 1e-9)
	assert.Equal(t, "230394", rmc.Date)
}

func TestParse_RMCVoid(t *testing.T) {
	s := mustParse(t, Format("GPRMC", "123519", "V", "", "", "", "", "", "", "230394", "", ""))
	rmc := s.(RMC)
	assert.False(t, rmc.Valid)
	assert.Nil(t, rmc.Position)
	assert.Nil(t, rmc.SpeedKnots)
}

func TestParse_MWV(t *testing.T) {
	s := mustParse(t, Format("WIMWV", "214.8", "R", "10.5", "M", "A"))
	mwv := s.(MWV)
	assert.InDelta(t, 214.8, mwv.Angle, 1e-9)
	assert.Equal(t, "R", mwv.Reference)
	assert.Equal(t, "M", mwv.SpeedUnit)
	assert.True(t, mwv.Valid)
}

func TestParse_DBT(t *testing.T) {
	s := mustParse(t, Format("SDDBT", "", "f", "", "M", "06.0", "F"))
	dbt := s.(DBT)
	assert.Nil(t, dbt.DepthFeet)
	assert.Nil(t, dbt.DepthMeters)
	require.NotNil(t, dbt.DepthFathoms)
	assert.InDelta(t, 6.0, *dbt.DepthFathoms, 1e-9)
}

func TestParse_HeadingSentences(t *testing.T) {
	hdg := mustParse(t, Format("HCHDG", "98.3", "0.5", "E", "12.6", "W")).(HDG)
	assert.InDelta(t, 98.3, hdg.Heading, 1e-9)
	require.NotNil(t, hdg.Deviation)
	assert.InDelta(t, 0.5, *hdg.Deviation, 1e-9)
	require.NotNil(t, hdg.Variation)
	assert.InDelta(t, -12.6, *hdg.Variation, 1e-9)

	hdt := mustParse(t, Format("HEHDT", "274.07", "T")).(HDT)
	assert.InDelta(t, 274.07, hdt.Heading, 1e-9)

	hdm := mustParse(t, Format("HCHDM", "238.5", "M")).(HDM)
	assert.InDelta(t, 238.5, hdm.Heading, 1e-9)
}

func TestParse_DPTVHWMTWGLL(t *testing.T) {
	dpt := mustParse(t, Format("SDDPT", "12.4", "-0.5")).(DPT)
	assert.InDelta(t, 12.4, dpt.DepthMeters, 1e-9)
	require.NotNil(t, dpt.Offset)

	vhw := mustParse(t, Format("VWVHW", "", "T", "", "M", "6.1", "N", "11.3", "K")).(VHW)
	assert.InDelta(t, 6.1, vhw.SpeedKnots, 1e-9)
	assert.Nil(t, vhw.HeadingTrue)

	mtw := mustParse(t, Format("YXMTW", "17.9", "C")).(MTW)
	assert.InDelta(t, 17.9, mtw.Temperature, 1e-9)

	gll := mustParse(t, Format("GPGLL", "4916.45", "N", "12311.12", "W", "225444", "A", "A")).(GLL)
	assert.True(t, gll.Valid)
	require.NotNil(t, gll.Position)
	assert.InDelta(t, -123.1853, gll.Position.LonDeg, 1e-4)
}

func TestParse_UnsupportedType(t *testing.T) {
	_, err := ParseLine(Format("GPGSV", "3", "1", "11", "03", "03", "111", "00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.False(t, errors.Is(err, ErrFieldMismatch))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindUnsupportedType, pe.Kind)
	assert.Equal(t, "GSV", pe.Type)
}

func TestParse_FieldMismatch(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		field string
	}{
		{"VTGShort", Format("GPVTG", "054.7", "T", "034.4"), ""},
		{"VTGSpeedNotNumeric", Format("GPVTG", "054.7", "T", "034.4", "M", "fast", "N", "010.2", "K"), "speed knots"},
		{"VTGSpeedEmpty", Format("GPVTG", "054.7", "T", "034.4", "M", "", "N", "010.2", "K"), "speed knots"},
		{"DBTAllEmpty", Format("SDDBT", "", "f", "", "M", "", "F"), "depth"},
		{"GGABadLatitude", Format("GPGGA", "123519", "48x7.038", "N", "01131.000", "E", "1", "08", "0.9", "545.4", "M", "", "M", "", ""), "latitude"},
		{"GGABadHemisphere", Format("GPGGA", "123519", "4807.038", "Q", "01131.000", "E", "1", "08", "0.9", "545.4", "M", "", "M", "", ""), "latitude"},
		{"GGABadSatellites", Format("GPGGA", "123519", "4807.038", "N", "01131.000", "E", "1", "eight", "0.9", "545.4", "M", "", "M", "", ""), "satellites"},
		{"MWVBadReference", Format("IIMWV", "45.0", "X", "12.5", "N", "A"), "reference"},
		{"HDTEmpty", Format("HEHDT", "", "T"), "heading"},
		{"RMCBadStatus", Format("GPRMC", "123519", "Z", "", "", "", "", "", "", "230394"), "status"},
		{"HDTNaN", Format("HEHDT", "NaN", "T"), "heading"},
		{"HDTInf", Format("HEHDT", "Inf", "T"), "heading"},
		{"HDTOverflow", Format("HEHDT", "1e309", "T"), "heading"},
		{"HDTNegative", Format("HEHDT", "-12.0", "T"), "heading"},
		{"HDGHuge", Format("HCHDG", "1e300", "", "", "1.0", "E"), "heading"},
		{"HDGVariationInfinity", Format("HCHDG", "98.3", "", "", "+Infinity", "E"), "variation"},
		{"HDGVariationOutOfRange", Format("HCHDG", "98.3", "", "", "200.0", "W"), "variation"},
		{"HDMAbove360", Format("HCHDM", "361.0", "M"), "heading"},
		{"MWVAngleOutOfRange", Format("IIMWV", "400.0", "R", "12.5", "N", "A"), "angle"},
		{"VTGTrackNaN", Format("GPVTG", "nan", "T", "034.4", "M", "005.5", "N", "010.2", "K"), "track true"},
		{"VTGSpeedInf", Format("GPVTG", "054.7", "T", "034.4", "M", "-Inf", "N", "010.2", "K"), "speed knots"},
		{"RMCCourseNegative", Format("GPRMC", "123519", "A", "4807.038", "N", "01131.000", "E", "022.4", "-84.4", "230394", "003.1", "W"), "course"},
		{"VHWHeadingNaN", Format("VWVHW", "NaN", "T", "", "M", "6.1", "N", "11.3", "K"), "heading true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLine(tc.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFieldMismatch), "err=%v", err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.field, pe.Field)
		})
	}
}

func TestParseFloat_RejectsNonFinite(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e309"} {
		_, _, err := parseFloat(in)
		assert.Error(t, err, in)
	}
	v, ok, err := parseFloat(" 1e300 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1e300, v)
}

func TestParse_AngleBounds(t *testing.T) {
	hdt := mustParse(t, Format("HEHDT", "360.0", "T")).(HDT)
	assert.Equal(t, 360.0, hdt.Heading)
	hdt = mustParse(t, Format("HEHDT", "0", "T")).(HDT)
	assert.Zero(t, hdt.Heading)
}

func TestParseLine_ValidationError(t *testing.T) {
	_, err := ParseLine("$GPHDT,274.07,T*00")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, StatusChecksumFail, ve.Result.Status)
}

func TestParseLatLon(t *testing.T) {
	v, ok := parseLatLon("4807.038", "N", 90)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, v, 1e-4)

	_, ok = parseLatLon("9107.000", "N", 90)
	assert.False(t, ok)
	_, ok = parseLatLon("4875.000", "N", 90)
	assert.False(t, ok)
	_, ok = parseLatLon("01131.000", "N", 180)
	assert.False(t, ok)
}
