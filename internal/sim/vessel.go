// Package sim generates deterministic NMEA traffic for a vessel sailing a
// figure-eight, for demos and end-to-end tests without hardware.
package sim

import (
	"fmt"
	"math"
	"time"

	"nmeaflow/internal/nmea"
)

type Vessel struct {
	CenterLatDeg float64
	CenterLonDeg float64
	RadiusNm     float64
	// Period is the time for one full figure-eight.
	Period time.Duration

	// DepthM is the mean depth; it varies slowly around this value.
	DepthM       float64
	TrueWindKt   float64
	TrueWindDir  float64
	WaterTempC   float64
	MagVariation float64 // degrees, east positive
}

func (v Vessel) withDefaults() Vessel {
	if v.RadiusNm <= 0 {
		v.RadiusNm = 0.5
	}
	if v.Period <= 0 {
		v.Period = 10 * time.Minute
	}
	if v.DepthM <= 0 {
		v.DepthM = 12
	}
	if v.TrueWindKt <= 0 {
		v.TrueWindKt = 12
	}
	if v.WaterTempC == 0 {
		v.WaterTempC = 17.5
	}
	return v
}

func (v Vessel) phase(now time.Time) float64 {
	p := v.Period.Nanoseconds()
	return float64(((now.UnixNano()%p)+p)%p) / float64(p)
}

// Position returns the vessel position, course over ground and speed over
// ground at now.
func (v Vessel) Position(now time.Time) (latDeg, lonDeg, courseDeg, speedKt float64) {
	v = v.withDefaults()
	radiusDeg := v.RadiusNm / 60.0
	cosLat := math.Cos(v.CenterLatDeg * math.Pi / 180.0)

	// x = cos(w), y = 0.5*sin(2w): a Lissajous figure-eight within the radius.
	w := 2 * math.Pi * v.phase(now)
	latDeg = v.CenterLatDeg + radiusDeg*0.5*math.Sin(2*w)
	lonDeg = v.CenterLonDeg + radiusDeg*math.Cos(w)/cosLat

	// Velocity in nm per period-fraction, then per hour.
	vx := -math.Sin(w) * v.RadiusNm * 2 * math.Pi
	vy := math.Cos(2*w) * v.RadiusNm * 2 * math.Pi
	courseDeg = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	speedKt = math.Hypot(vx, vy) / v.Period.Hours()
	return latDeg, lonDeg, courseDeg, speedKt
}

// Sentences renders one burst of sentences for now, the way a small
// instrument network would emit them each second.
func (v Vessel) Sentences(now time.Time) []string {
	v = v.withDefaults()
	now = now.UTC()
	lat, lon, cog, sog := v.Position(now)
	heading := math.Mod(cog+3*math.Sin(2*math.Pi*v.phase(now)*7)+360, 360)
	depth := v.DepthM + 2*math.Sin(2*math.Pi*v.phase(now)*3)

	// Apparent wind from true wind and boat velocity.
	twRad := (v.TrueWindDir - heading) * math.Pi / 180
	ax := v.TrueWindKt * math.Sin(twRad)
	ay := v.TrueWindKt*math.Cos(twRad) + sog
	awa := math.Mod(math.Atan2(ax, ay)*180/math.Pi+360, 360)
	aws := math.Hypot(ax, ay)
	twa := math.Mod(v.TrueWindDir-heading+360, 360)

	hms := now.Format("150405") + fmt.Sprintf(".%02d", now.Nanosecond()/1e7)
	latS, latH := fmtLat(lat)
	lonS, lonH := fmtLon(lon)
	varS, varH := fmt.Sprintf("%.1f", math.Abs(v.MagVariation)), "E"
	if v.MagVariation < 0 {
		varH = "W"
	}

	return []string{
		nmea.Format("GPRMC", hms, "A", latS, latH, lonS, lonH,
			f1(sog), f1(cog), now.Format("020106"), varS, varH, "A"),
		nmea.Format("GPGGA", hms, latS, latH, lonS, lonH, "1", "09", "0.9", "2.1", "M", "47.0", "M", "", ""),
		nmea.Format("GPVTG", f1(cog), "T", f1(math.Mod(cog-v.MagVariation+360, 360)), "M",
			f1(sog), "N", f1(sog*1.852), "K", "A"),
		nmea.Format("HEHDT", f1(heading), "T"),
		nmea.Format("SDDBT", f1(depth/0.3048), "f", f1(depth), "M", f1(depth/1.8288), "F"),
		nmea.Format("WIMWV", f1(awa), "R", f1(aws), "N", "A"),
		nmea.Format("WIMWV", f1(twa), "T", f1(v.TrueWindKt), "N", "A"),
		nmea.Format("YXMTW", f1(v.WaterTempC), "C"),
	}
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }

func fmtLat(deg float64) (string, string) {
	h := "N"
	if deg < 0 {
		h = "S"
	}
	d, m := degMin(math.Abs(deg))
	return fmt.Sprintf("%02d%07.4f", d, m), h
}

func fmtLon(deg float64) (string, string) {
	h := "E"
	if deg < 0 {
		h = "W"
	}
	d, m := degMin(math.Abs(deg))
	return fmt.Sprintf("%03d%07.4f", d, m), h
}

// degMin splits deg into whole degrees and minutes rounded to 4 places.
func degMin(deg float64) (int, float64) {
	d := math.Floor(deg)
	m := math.Round((deg-d)*60*1e4) / 1e4
	if m >= 60 {
		d++
		m = 0
	}
	return int(d), m
}
