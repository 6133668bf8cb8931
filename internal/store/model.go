package store

import (
	"encoding/json"
	"sort"
	"time"
)

// Field names a slot in the unified data record.
type Field string

const (
	FieldDepth             Field = "depth"
	FieldSpeed             Field = "speed"
	FieldCourse            Field = "course"
	FieldSpeedThroughWater Field = "speedThroughWater"
	FieldWindAngle         Field = "windAngle"
	FieldWindSpeed         Field = "windSpeed"
	FieldWindAngleTrue     Field = "windAngleTrue"
	FieldWindSpeedTrue     Field = "windSpeedTrue"
	FieldGPSPosition       Field = "gpsPosition"
	FieldGPSQuality        Field = "gpsQuality"
	FieldGPSAltitude       Field = "gpsAltitude"
	FieldHeading           Field = "heading"
	FieldHeadingMagnetic   Field = "headingMagnetic"
	FieldMagneticVariation Field = "magneticVariation"
	FieldWaterTemperature  Field = "waterTemperature"
)

// Canonical units carried on Scalar values.
const (
	UnitMeters          = "m"
	UnitKnots           = "kn"
	UnitDegrees         = "deg"
	UnitDegreesRelative = "deg-relative"
	UnitDegreesTrue     = "deg-true"
	UnitCelsius         = "degC"
)

// Value is a field value in canonical units. Implementations are Scalar,
// Position and FixQuality.
type Value interface {
	kind() string
}

// Scalar is a single number with its unit.
type Scalar struct {
	V    float64 `json:"value"`
	Unit string  `json:"unit"`
}

// Position is a fix in signed decimal degrees.
type Position struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
}

// FixQuality summarizes receiver fix state. FixType is 0 (no usable fix),
// 1 (GPS fix) or 2 (differential fix).
type FixQuality struct {
	FixType    int      `json:"fixType"`
	Satellites *int     `json:"satellites,omitempty"`
	HDOP       *float64 `json:"hdop,omitempty"`
}

func (Scalar) kind() string     { return "scalar" }
func (Position) kind() string   { return "position" }
func (FixQuality) kind() string { return "fixQuality" }

// FieldUpdate assigns one field.
type FieldUpdate struct {
	Field Field
	Value Value
}

// Entry is a stored value plus the time it was last written.
type Entry struct {
	Value     Value
	UpdatedAt time.Time
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string    `json:"kind"`
		Value     Value     `json:"data"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{e.Value.kind(), e.Value, e.UpdatedAt})
}

// Record is an immutable view of every field written so far. The zero value
// is an empty record.
type Record struct {
	fields    map[Field]Entry
	version   uint64
	updatedAt time.Time
}

// Get returns the entry for f.
func (r Record) Get(f Field) (Entry, bool) {
	e, ok := r.fields[f]
	return e, ok
}

// Scalar returns the numeric value for f when f holds a Scalar.
func (r Record) Scalar(f Field) (float64, bool) {
	e, ok := r.fields[f]
	if !ok {
		return 0, false
	}
	s, ok := e.Value.(Scalar)
	return s.V, ok
}

func (r Record) Len() int { return len(r.fields) }

// Version increases by one for every applied batch and every reset.
func (r Record) Version() uint64 { return r.version }

func (r Record) UpdatedAt() time.Time { return r.updatedAt }

// Fields lists the populated field names in sorted order.
func (r Record) Fields() []Field {
	out := make([]Field, 0, len(r.fields))
	for f := range r.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	fields := r.fields
	if fields == nil {
		fields = map[Field]Entry{}
	}
	var updated *time.Time
	if !r.updatedAt.IsZero() {
		u := r.updatedAt
		updated = &u
	}
	return json.Marshal(struct {
		Version   uint64          `json:"version"`
		UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
		Fields    map[Field]Entry `json:"fields"`
	}{r.version, updated, fields})
}
