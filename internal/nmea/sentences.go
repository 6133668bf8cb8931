package nmea

// Supported sentence formatters.
const (
	TypeDBT = "DBT"
	TypeDPT = "DPT"
	TypeVTG = "VTG"
	TypeRMC = "RMC"
	TypeMWV = "MWV"
	TypeGGA = "GGA"
	TypeGLL = "GLL"
	TypeHDG = "HDG"
	TypeHDT = "HDT"
	TypeHDM = "HDM"
	TypeVHW = "VHW"
	TypeMTW = "MTW"
)

// Sentence is a decoded sentence. The set of implementations is closed: every
// variant embeds Header and is declared in this file.
type Sentence interface {
	Talker() string
	Type() string
	sentence()
}

// Header carries provenance common to every variant.
type Header struct {
	TalkerID     string
	SentenceType string
}

func (h Header) Talker() string { return h.TalkerID }
func (h Header) Type() string   { return h.SentenceType }
func (Header) sentence()        {}

// LatLon is a position in signed decimal degrees (south and west negative).
type LatLon struct {
	LatDeg float64
	LonDeg float64
}

// DBT: depth below transducer. At least one unit is present.
type DBT struct {
	Header
	DepthFeet    *float64
	DepthMeters  *float64
	DepthFathoms *float64
}

// DPT: depth of water.
type DPT struct {
	Header
	DepthMeters float64
	// Offset is the transducer offset in meters; positive means distance
	// from transducer to water line, negative to keel.
	Offset   *float64
	MaxRange *float64
}

// VTG: track made good and ground speed.
type VTG struct {
	Header
	TrackTrue     *float64
	TrackMagnetic *float64
	SpeedKnots    float64
	SpeedKPH      *float64
	Mode          string
}

// RMC: recommended minimum navigation information.
type RMC struct {
	Header
	Time       string
	Valid      bool
	Position   *LatLon
	SpeedKnots *float64
	CourseTrue *float64
	Date       string
	// Variation is the magnetic variation in degrees, east positive.
	Variation *float64
}

// MWV: wind speed and angle.
type MWV struct {
	Header
	Angle float64
	// Reference is "R" (relative, apparent) or "T" (theoretical, true).
	Reference string
	Speed     float64
	// SpeedUnit is "K" (km/h), "M" (m/s), "N" (knots) or "S" (statute mph).
	SpeedUnit string
	Valid     bool
}

// GGA fix types, decoded from the fix quality digit.
const (
	FixNone       = "none"
	FixGPS        = "fix"
	FixDGPS       = "dgps-fix"
	FixPPS        = "pps-fix"
	FixRTK        = "rtk"
	FixRTKFloat   = "rtk-float"
	FixEstimated  = "estimated"
	FixManual     = "manual"
	FixSimulation = "simulation"
	FixUnknown    = "unknown"
)

var fixTypes = [...]string{FixNone, FixGPS, FixDGPS, FixPPS, FixRTK, FixRTKFloat, FixEstimated, FixManual, FixSimulation}

// GGA: global positioning system fix data.
type GGA struct {
	Header
	Time     string
	Position *LatLon
	// FixType is one of the Fix* constants, or "" when the talker left the
	// quality field empty.
	FixType         string
	Satellites      *int
	HDOP            *float64
	AltitudeMeters  *float64
	GeoidSeparation *float64
	DGPSAge         *float64
	DGPSStation     string
}

// GLL: geographic position.
type GLL struct {
	Header
	Position *LatLon
	Time     string
	Valid    bool
}

// HDG: magnetic sensor heading with optional deviation and variation, both
// signed east positive.
type HDG struct {
	Header
	Heading   float64
	Deviation *float64
	Variation *float64
}

// HDT: true heading.
type HDT struct {
	Header
	Heading float64
}

// HDM: magnetic heading.
type HDM struct {
	Header
	Heading float64
}

// VHW: water speed and heading.
type VHW struct {
	Header
	HeadingTrue     *float64
	HeadingMagnetic *float64
	SpeedKnots      float64
	SpeedKPH        *float64
}

// MTW: water temperature.
type MTW struct {
	Header
	Temperature float64
	// Unit is "C" for nearly all talkers.
	Unit string
}
