package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fieldReader decodes fields of one payload and keeps the first error, so
// parse functions read as a flat list of field accesses.
type fieldReader struct {
	typ    string
	fields []string
	err    error
}

func newFieldReader(p Payload, min int) *fieldReader {
	r := &fieldReader{typ: p.Type, fields: p.Fields}
	if len(p.Fields) < min {
		r.err = mismatch(p.Type, "", fmt.Errorf("want at least %d fields, got %d", min, len(p.Fields)))
	}
	return r
}

func (r *fieldReader) fail(name string, err error) {
	if r.err == nil {
		r.err = mismatch(r.typ, name, err)
	}
}

// str returns the trimmed field, or "" when it is absent.
func (r *fieldReader) str(i int) string {
	if i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r *fieldReader) float(i int, name string) float64 {
	v, ok, err := parseFloat(r.str(i))
	if err != nil {
		r.fail(name, err)
		return 0
	}
	if !ok {
		r.fail(name, fmt.Errorf("required value is empty"))
	}
	return v
}

func (r *fieldReader) optFloat(i int, name string) *float64 {
	v, ok, err := parseFloat(r.str(i))
	if err != nil {
		r.fail(name, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}

// angle reads a required direction in degrees within [0, 360].
func (r *fieldReader) angle(i int, name string) float64 {
	v := r.float(i, name)
	if r.err == nil && (v < 0 || v > 360) {
		r.fail(name, fmt.Errorf("angle %v out of range [0, 360]", v))
	}
	return v
}

func (r *fieldReader) optAngle(i int, name string) *float64 {
	v := r.optFloat(i, name)
	if v != nil && (*v < 0 || *v > 360) {
		r.fail(name, fmt.Errorf("angle %v out of range [0, 360]", *v))
		return nil
	}
	return v
}

func (r *fieldReader) optInt(i int, name string) *int {
	s := r.str(i)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	return &v
}

// signed reads a value/direction pair where the direction letter is either
// pos or neg; an empty value yields nil. The magnitude is limited to 180
// degrees.
func (r *fieldReader) signed(i int, name string, pos, neg string) *float64 {
	v := r.optFloat(i, name)
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 180 {
		r.fail(name, fmt.Errorf("value %v out of range [0, 180]", *v))
		return nil
	}
	switch strings.ToUpper(r.str(i + 1)) {
	case pos, "":
		return v
	case neg:
		n := -*v
		return &n
	default:
		r.fail(name, fmt.Errorf("bad direction %q", r.str(i+1)))
		return nil
	}
}

// position reads lat,N/S,lon,E/W starting at i. All four empty means no
// position, which is how receivers report a missing fix.
func (r *fieldReader) position(i int) *LatLon {
	latS, latH := r.str(i), r.str(i+1)
	lonS, lonH := r.str(i+2), r.str(i+3)
	if latS == "" && latH == "" && lonS == "" && lonH == "" {
		return nil
	}
	lat, ok := parseLatLon(latS, latH, 90)
	if !ok {
		r.fail("latitude", fmt.Errorf("bad coordinate %q %q", latS, latH))
		return nil
	}
	lon, ok := parseLatLon(lonS, lonH, 180)
	if !ok {
		r.fail("longitude", fmt.Errorf("bad coordinate %q %q", lonS, lonH))
		return nil
	}
	return &LatLon{LatDeg: lat, LonDeg: lon}
}

func parseFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	// ParseFloat accepts NaN, Inf and overflows to Inf; none is a reading.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("non-finite number %q", s)
	}
	return v, true, nil
}

// parseLatLon parses NMEA lat/lon in ddmm.mmmm or dddmm.mmmm plus hemisphere.
func parseLatLon(v string, hemi string, maxDeg float64) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" {
		return 0, false
	}
	switch {
	case maxDeg == 90 && hemi != "N" && hemi != "S":
		return 0, false
	case maxDeg == 180 && hemi != "E" && hemi != "W":
		return 0, false
	}

	// The last two digits of the integer part are minutes.
	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil || deg < 0 {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil || mins < 0 || mins >= 60 {
		return 0, false
	}

	dec := float64(deg) + mins/60.0
	if dec > maxDeg {
		return 0, false
	}
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}
