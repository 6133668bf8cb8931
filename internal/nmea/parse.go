package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a parse failure.
type Kind int

const (
	KindUnsupportedType Kind = iota + 1
	KindFieldMismatch
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedType:
		return "unsupported-type"
	case KindFieldMismatch:
		return "field-mismatch"
	default:
		return "unknown"
	}
}

var (
	ErrUnsupportedType = errors.New("nmea: unsupported sentence type")
	ErrFieldMismatch   = errors.New("nmea: field mismatch")
)

// ParseError describes why a valid payload could not be decoded.
type ParseError struct {
	Kind  Kind
	Type  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("nmea: ")
	b.WriteString(e.Kind.String())
	if e.Type != "" {
		b.WriteString(" type=")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case KindUnsupportedType:
		return target == ErrUnsupportedType
	case KindFieldMismatch:
		return target == ErrFieldMismatch
	}
	return false
}

func mismatch(typ, field string, err error) error {
	return &ParseError{Kind: KindFieldMismatch, Type: typ, Field: field, Err: err}
}

// Parse decodes a validated payload. Unknown formatters yield a ParseError of
// KindUnsupportedType, which callers are expected to skip quietly.
func Parse(p Payload) (Sentence, error) {
	h := Header{TalkerID: p.Talker, SentenceType: p.Type}
	switch p.Type {
	case TypeDBT:
		return parseDBT(h, p)
	case TypeDPT:
		return parseDPT(h, p)
	case TypeVTG:
		return parseVTG(h, p)
	case TypeRMC:
		return parseRMC(h, p)
	case TypeMWV:
		return parseMWV(h, p)
	case TypeGGA:
		return parseGGA(h, p)
	case TypeGLL:
		return parseGLL(h, p)
	case TypeHDG:
		return parseHDG(h, p)
	case TypeHDT:
		return parseHDT(h, p)
	case TypeHDM:
		return parseHDM(h, p)
	case TypeVHW:
		return parseVHW(h, p)
	case TypeMTW:
		return parseMTW(h, p)
	default:
		return nil, &ParseError{Kind: KindUnsupportedType, Type: p.Type}
	}
}

// ValidationError is returned by ParseLine for lines that fail validation.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nmea: %s: %s", e.Result.Status, e.Result.Reason)
}

// ParseLine validates and parses a raw line in one step.
func ParseLine(line string) (Sentence, error) {
	res := Validate(line)
	if !res.Valid() {
		return nil, &ValidationError{Result: res}
	}
	return Parse(res.Payload)
}

// DBT fields:
//
//	0: depth (feet), 1: f
//	2: depth (meters), 3: M
//	4: depth (fathoms), 5: F
func parseDBT(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 6)
	s := DBT{
		Header:       h,
		DepthFeet:    r.optFloat(0, "depth feet"),
		DepthMeters:  r.optFloat(2, "depth meters"),
		DepthFathoms: r.optFloat(4, "depth fathoms"),
	}
	if r.err == nil && s.DepthFeet == nil && s.DepthMeters == nil && s.DepthFathoms == nil {
		r.fail("depth", errors.New("no depth value in any unit"))
	}
	return result(s, r)
}

// DPT fields:
//
//	0: depth (meters)
//	1: transducer offset (meters)
//	2: maximum range scale (NMEA 3.0+)
func parseDPT(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 2)
	s := DPT{
		Header:      h,
		DepthMeters: r.float(0, "depth"),
		Offset:      r.optFloat(1, "offset"),
		MaxRange:    r.optFloat(2, "max range"),
	}
	return result(s, r)
}

// VTG fields:
//
//	0: track (true), 1: T
//	2: track (magnetic), 3: M
//	4: speed (knots), 5: N
//	6: speed (km/h), 7: K
//	8: mode indicator (NMEA 2.3+)
func parseVTG(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 8)
	s := VTG{
		Header:        h,
		TrackTrue:     r.optAngle(0, "track true"),
		TrackMagnetic: r.optAngle(2, "track magnetic"),
		SpeedKnots:    r.float(4, "speed knots"),
		SpeedKPH:      r.optFloat(6, "speed kph"),
		Mode:          r.str(8),
	}
	return result(s, r)
}

// RMC fields:
//
//	0: time (hhmmss.ss)
//	1: status (A=active, V=void)
//	2: latitude, 3: N/S
//	4: longitude, 5: E/W
//	6: speed over ground (knots)
//	7: course over ground (deg true)
//	8: date (ddmmyy)
//	9: magnetic variation, 10: E/W
func parseRMC(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 9)
	status := strings.ToUpper(r.str(1))
	if r.err == nil && status != "A" && status != "V" {
		r.fail("status", fmt.Errorf("bad status %q", status))
	}
	s := RMC{
		Header:     h,
		Time:       r.str(0),
		Valid:      status == "A",
		Position:   r.position(2),
		SpeedKnots: r.optFloat(6, "speed"),
		CourseTrue: r.optAngle(7, "course"),
		Date:       r.str(8),
		Variation:  r.signed(9, "variation", "E", "W"),
	}
	return result(s, r)
}

// MWV fields:
//
//	0: wind angle (0-359)
//	1: reference (R=relative, T=theoretical)
//	2: wind speed
//	3: speed unit (K/M/N/S)
//	4: status (A=valid)
func parseMWV(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 5)
	s := MWV{
		Header:    h,
		Angle:     r.angle(0, "angle"),
		Reference: strings.ToUpper(r.str(1)),
		Speed:     r.float(2, "speed"),
		SpeedUnit: strings.ToUpper(r.str(3)),
		Valid:     strings.EqualFold(r.str(4), "A"),
	}
	if s.Reference != "R" && s.Reference != "T" {
		r.fail("reference", fmt.Errorf("bad reference %q", s.Reference))
	}
	switch s.SpeedUnit {
	case "K", "M", "N", "S":
	default:
		r.fail("speed unit", fmt.Errorf("bad unit %q", s.SpeedUnit))
	}
	return result(s, r)
}

// GGA fields:
//
//	0: time
//	1: latitude, 2: N/S
//	3: longitude, 4: E/W
//	5: fix quality (0=invalid)
//	6: number of satellites
//	7: HDOP
//	8: altitude (meters), 9: M
//	10: geoid separation, 11: M
//	12: age of DGPS data, 13: DGPS station id
func parseGGA(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 10)
	s := GGA{
		Header:          h,
		Time:            r.str(0),
		Position:        r.position(1),
		FixType:         fixType(r),
		Satellites:      r.optInt(6, "satellites"),
		HDOP:            r.optFloat(7, "hdop"),
		AltitudeMeters:  r.optFloat(8, "altitude"),
		GeoidSeparation: r.optFloat(10, "geoid separation"),
		DGPSAge:         r.optFloat(12, "dgps age"),
		DGPSStation:     r.str(13),
	}
	return result(s, r)
}

func fixType(r *fieldReader) string {
	q := r.str(5)
	if q == "" {
		return ""
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		r.fail("fix quality", err)
		return ""
	}
	if n < 0 || n >= len(fixTypes) {
		return FixUnknown
	}
	return fixTypes[n]
}

// GLL fields:
//
//	0: latitude, 1: N/S
//	2: longitude, 3: E/W
//	4: time (NMEA 2.0+)
//	5: status (NMEA 2.0+)
func parseGLL(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 4)
	status := strings.ToUpper(r.str(5))
	s := GLL{
		Header:   h,
		Position: r.position(0),
		Time:     r.str(4),
		Valid:    status == "" || status == "A",
	}
	return result(s, r)
}

// HDG fields:
//
//	0: magnetic sensor heading
//	1: deviation, 2: E/W
//	3: variation, 4: E/W
func parseHDG(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 5)
	s := HDG{
		Header:    h,
		Heading:   r.angle(0, "heading"),
		Deviation: r.signed(1, "deviation", "E", "W"),
		Variation: r.signed(3, "variation", "E", "W"),
	}
	return result(s, r)
}

// HDT fields: 0: heading (true), 1: T
func parseHDT(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 1)
	s := HDT{Header: h, Heading: r.angle(0, "heading")}
	return result(s, r)
}

// HDM fields: 0: heading (magnetic), 1: M
func parseHDM(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 1)
	s := HDM{Header: h, Heading: r.angle(0, "heading")}
	return result(s, r)
}

// VHW fields:
//
//	0: heading (true), 1: T
//	2: heading (magnetic), 3: M
//	4: speed through water (knots), 5: N
//	6: speed through water (km/h), 7: K
func parseVHW(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 6)
	s := VHW{
		Header:          h,
		HeadingTrue:     r.optAngle(0, "heading true"),
		HeadingMagnetic: r.optAngle(2, "heading magnetic"),
		SpeedKnots:      r.float(4, "speed knots"),
		SpeedKPH:        r.optFloat(6, "speed kph"),
	}
	return result(s, r)
}

// MTW fields: 0: temperature, 1: unit (C)
func parseMTW(h Header, p Payload) (Sentence, error) {
	r := newFieldReader(p, 2)
	s := MTW{
		Header:      h,
		Temperature: r.float(0, "temperature"),
		Unit:        strings.ToUpper(r.str(1)),
	}
	if s.Unit != "C" && s.Unit != "F" {
		r.fail("unit", fmt.Errorf("bad unit %q", s.Unit))
	}
	return result(s, r)
}

func result(s Sentence, r *fieldReader) (Sentence, error) {
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}
