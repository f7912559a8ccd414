// Package sun computes solar altitude for the open-roof safety guard.
// An open roof with the sun above the horizon can put direct sunlight on
// the telescope, so the monitor can veto OPEN while the sun is up.
//
// The position formula is the Astronomical Almanac low-precision
// approximation (good to ~0.01 degrees through 2050), which is far
// tighter than the guard needs.
package sun

import (
	"math"
	"time"
)

// Altitude thresholds in degrees, matching the usual twilight bands.
const (
	Horizon              = 0.0
	CivilTwilight        = -6.0
	NauticalTwilight     = -12.0
	AstronomicalTwilight = -18.0
)

const degToRad = math.Pi / 180

// Elevation returns the solar altitude in degrees at time t for an
// observer at latDeg/lonDeg (east longitude positive). Refraction is
// ignored.
func Elevation(t time.Time, latDeg, lonDeg float64) float64 {
	// Days since J2000.0.
	jd := float64(t.UnixMilli())/86400000.0 + 2440587.5
	n := jd - 2451545.0

	// Mean longitude and mean anomaly of the sun.
	meanLon := wrap360(280.460 + 0.9856474*n)
	meanAnom := wrap360(357.528+0.9856003*n) * degToRad

	// Ecliptic longitude with the equation of center.
	eclLon := (meanLon + 1.915*math.Sin(meanAnom) + 0.020*math.Sin(2*meanAnom)) * degToRad
	obliquity := (23.439 - 0.0000004*n) * degToRad

	rightAsc := math.Atan2(math.Cos(obliquity)*math.Sin(eclLon), math.Cos(eclLon))
	decl := math.Asin(math.Sin(obliquity) * math.Sin(eclLon))

	// Greenwich mean sidereal time, then the local hour angle.
	gmst := wrap360(280.46061837 + 360.98564736629*n)
	hourAngle := (wrap360(gmst+lonDeg) - rightAsc/degToRad) * degToRad

	lat := latDeg * degToRad
	sinAlt := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(hourAngle)
	return math.Asin(sinAlt) / degToRad
}

func wrap360(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Guard vetoes an OPEN verdict while the sun sits at or above the
// configured altitude.
type Guard struct {
	Latitude     float64
	Longitude    float64
	ThresholdDeg float64
}

func NewGuard(lat, lon, thresholdDeg float64) *Guard {
	return &Guard{Latitude: lat, Longitude: lon, ThresholdDeg: thresholdDeg}
}

// SafeForOpen reports whether an open roof is acceptable at time t, and
// returns the computed altitude for diagnostics. Equality with the
// threshold counts as unsafe.
func (g *Guard) SafeForOpen(t time.Time) (bool, float64) {
	alt := Elevation(t, g.Latitude, g.Longitude)
	return g.safe(alt), alt
}

func (g *Guard) safe(altitudeDeg float64) bool {
	return altitudeDeg < g.ThresholdDeg
}
