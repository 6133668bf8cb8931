// Package mapper turns parsed sentences into store field updates in
// canonical units.
package mapper

import (
	"errors"
	"fmt"
	"math"

	"nmeaflow/internal/nmea"
	"nmeaflow/internal/store"
)

// ErrUnmappedSentence reports a sentence variant with no mapping.
var ErrUnmappedSentence = errors.New("mapper: unmapped sentence")

const (
	feetToMeters    = 0.3048
	fathomsToMeters = 1.8288
	kphToKnots      = 1 / 1.852
	mpsToKnots      = 3600.0 / 1852.0
	mphToKnots      = 1609.344 / 1852.0
)

// Map returns the updates for s. It panics on a variant with no mapping;
// callers that must not panic use MapChecked.
func Map(s nmea.Sentence) []store.FieldUpdate {
	u, err := MapChecked(s)
	if err != nil {
		panic(err)
	}
	return u
}

// MapChecked is Map returning ErrUnmappedSentence instead of panicking.
func MapChecked(s nmea.Sentence) ([]store.FieldUpdate, error) {
	var b batch
	switch v := s.(type) {
	case nmea.DBT:
		switch {
		case v.DepthMeters != nil:
			b.scalar(store.FieldDepth, *v.DepthMeters, store.UnitMeters)
		case v.DepthFeet != nil:
			b.scalar(store.FieldDepth, *v.DepthFeet*feetToMeters, store.UnitMeters)
		case v.DepthFathoms != nil:
			b.scalar(store.FieldDepth, *v.DepthFathoms*fathomsToMeters, store.UnitMeters)
		}
	case nmea.DPT:
		d := v.DepthMeters
		if v.Offset != nil && *v.Offset > 0 {
			d += *v.Offset
		}
		b.scalar(store.FieldDepth, d, store.UnitMeters)
	case nmea.VTG:
		b.scalar(store.FieldSpeed, v.SpeedKnots, store.UnitKnots)
		if v.TrackTrue != nil {
			b.scalar(store.FieldCourse, *v.TrackTrue, store.UnitDegrees)
		}
	case nmea.RMC:
		if !v.Valid {
			break
		}
		if v.Position != nil {
			b.position(*v.Position)
		}
		if v.SpeedKnots != nil {
			b.scalar(store.FieldSpeed, *v.SpeedKnots, store.UnitKnots)
		}
		if v.CourseTrue != nil {
			b.scalar(store.FieldCourse, *v.CourseTrue, store.UnitDegrees)
		}
		if v.Variation != nil {
			b.scalar(store.FieldMagneticVariation, *v.Variation, store.UnitDegrees)
		}
	case nmea.MWV:
		if !v.Valid {
			break
		}
		kn, ok := windKnots(v.Speed, v.SpeedUnit)
		if !ok {
			break
		}
		if v.Reference == "T" {
			b.scalar(store.FieldWindAngleTrue, v.Angle, store.UnitDegreesTrue)
			b.scalar(store.FieldWindSpeedTrue, kn, store.UnitKnots)
		} else {
			b.scalar(store.FieldWindAngle, v.Angle, store.UnitDegreesRelative)
			b.scalar(store.FieldWindSpeed, kn, store.UnitKnots)
		}
	case nmea.GGA:
		if v.Position != nil {
			b.position(*v.Position)
		}
		b.add(store.FieldGPSQuality, store.FixQuality{
			FixType:    FixOrdinal(v.FixType),
			Satellites: v.Satellites,
			HDOP:       v.HDOP,
		})
		if v.AltitudeMeters != nil {
			b.scalar(store.FieldGPSAltitude, *v.AltitudeMeters, store.UnitMeters)
		}
	case nmea.GLL:
		if v.Valid && v.Position != nil {
			b.position(*v.Position)
		}
	case nmea.HDG:
		b.scalar(store.FieldHeadingMagnetic, v.Heading, store.UnitDegrees)
		if v.Variation != nil {
			b.scalar(store.FieldMagneticVariation, *v.Variation, store.UnitDegrees)
			h := v.Heading + *v.Variation
			if v.Deviation != nil {
				h += *v.Deviation
			}
			b.scalar(store.FieldHeading, normDeg(h), store.UnitDegrees)
		}
	case nmea.HDT:
		b.scalar(store.FieldHeading, v.Heading, store.UnitDegrees)
	case nmea.HDM:
		b.scalar(store.FieldHeadingMagnetic, v.Heading, store.UnitDegrees)
	case nmea.VHW:
		b.scalar(store.FieldSpeedThroughWater, v.SpeedKnots, store.UnitKnots)
		if v.HeadingTrue != nil {
			b.scalar(store.FieldHeading, *v.HeadingTrue, store.UnitDegrees)
		}
		if v.HeadingMagnetic != nil {
			b.scalar(store.FieldHeadingMagnetic, *v.HeadingMagnetic, store.UnitDegrees)
		}
	case nmea.MTW:
		c := v.Temperature
		if v.Unit == "F" {
			c = (c - 32) * 5 / 9
		}
		b.scalar(store.FieldWaterTemperature, c, store.UnitCelsius)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnmappedSentence, s)
	}
	return b.updates, nil
}

// FixOrdinal maps a GGA fix type to the store's fix ordinal.
func FixOrdinal(fixType string) int {
	switch fixType {
	case nmea.FixGPS:
		return 1
	case nmea.FixDGPS:
		return 2
	default:
		return 0
	}
}

func windKnots(v float64, unit string) (float64, bool) {
	switch unit {
	case "N":
		return v, true
	case "K":
		return v * kphToKnots, true
	case "M":
		return v * mpsToKnots, true
	case "S":
		return v * mphToKnots, true
	}
	return 0, false
}

func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

type batch struct {
	updates []store.FieldUpdate
}

func (b *batch) add(f store.Field, v store.Value) {
	b.updates = append(b.updates, store.FieldUpdate{Field: f, Value: v})
}

// scalar skips non-finite values; the store only holds real readings.
func (b *batch) scalar(f store.Field, v float64, unit string) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	b.add(f, store.Scalar{V: v, Unit: unit})
}

func (b *batch) position(p nmea.LatLon) {
	b.add(store.FieldGPSPosition, store.Position{LatDeg: p.LatDeg, LonDeg: p.LonDeg})
}
