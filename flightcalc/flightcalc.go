// Package flightcalc converts route geometry and cruise speed into flight
// durations. All functions are pure and deterministic.
package flightcalc

import (
	"math"
	"time"
)

const (
	earthRadiusNM = 3440.065

	// defaultCruiseKts is used when an aircraft record carries no speed.
	defaultCruiseKts = 450.0

	// windFromDeg models a prevailing westerly: the wind blows toward 090,
	// so eastbound legs pick up a tailwind and westbound legs a headwind.
	windFromDeg = 270.0

	// techStopMinutes is the fixed ground time at a technical stop.
	techStopMinutes = 30

	// returnShare is the share of the full out-and-back distance assigned
	// to the return legs when no return distance was recorded.
	returnShare = 0.5
)

// Point is a coordinate pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between two points in
// nautical miles.
func Haversine(a, b Point) float64 {
	dLat := rad(b.Lat - a.Lat)
	dLon := rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusNM * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b Point) float64 {
	p1 := rad(a.Lat)
	p2 := rad(b.Lat)
	dLon := rad(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// WindComponentKts returns the along-track wind component for a leg from a
// to b under the prevailing-westerly model. Positive values are tailwind.
// Because the return leg flies the reciprocal track, outbound and return
// components have opposite sign in the general case.
func WindComponentKts(a, b Point, windKts float64) float64 {
	if windKts == 0 {
		return 0
	}
	track := Bearing(a, b)
	blowingToward := windFromDeg - 180
	return windKts * math.Cos(rad(track-blowingToward))
}

// LegDuration converts one leg into a wall-clock duration. Ground speed is
// cruise plus the (signed) wind component, floored at half the cruise speed
// so a strong headwind can never produce a non-positive duration.
func LegDuration(distanceNM, cruiseKts, windKts float64) time.Duration {
	if cruiseKts <= 0 {
		cruiseKts = defaultCruiseKts
	}
	gs := cruiseKts + windKts
	if floor := cruiseKts / 2; gs < floor {
		gs = floor
	}
	if distanceNM <= 0 {
		return time.Minute
	}
	d := time.Duration(distanceNM / gs * float64(time.Hour))
	if d < time.Minute {
		d = time.Minute
	}
	return d
}

// RoundTripParams describes one dated round trip on a route.
type RoundTripParams struct {
	DistanceNM       float64
	ReturnDistanceNM float64 // 0 means not recorded
	CruiseKts        float64
	TurnaroundMin    int
	WindKts          float64 // 0 disables the wind adjustment
	Origin           Point
	Destination      Point
	TechStop         *Point
}

// RoundTrip returns the total duration of outbound leg(s), turnaround and
// return leg(s). With a technical stop the trip is four legs, each pair
// separated by a fixed stop time; return-leg distances fall back to the
// configured share of the out-and-back total when not recorded.
func RoundTrip(p RoundTripParams) time.Duration {
	retDist := p.ReturnDistanceNM
	if retDist <= 0 {
		retDist = p.DistanceNM * 2 * returnShare
	}

	turnaround := time.Duration(p.TurnaroundMin) * time.Minute

	if p.TechStop == nil {
		out := LegDuration(p.DistanceNM, p.CruiseKts, WindComponentKts(p.Origin, p.Destination, p.WindKts))
		ret := LegDuration(retDist, p.CruiseKts, WindComponentKts(p.Destination, p.Origin, p.WindKts))
		return out + turnaround + ret
	}

	stop := *p.TechStop
	d1 := Haversine(p.Origin, stop)
	d2 := Haversine(stop, p.Destination)
	if d1+d2 <= 0 {
		d1 = p.DistanceNM / 2
		d2 = p.DistanceNM / 2
	} else if p.DistanceNM > 0 {
		// Route distance is authoritative; scale the geometric legs to it.
		scale := p.DistanceNM / (d1 + d2)
		d1 *= scale
		d2 *= scale
	}

	rShare := 1.0
	if p.DistanceNM > 0 {
		rShare = retDist / p.DistanceNM
	}
	r1 := d2 * rShare // destination back to the stop
	r2 := d1 * rShare // stop back to origin

	stopTime := techStopMinutes * time.Minute
	total := LegDuration(d1, p.CruiseKts, WindComponentKts(p.Origin, stop, p.WindKts)) +
		stopTime +
		LegDuration(d2, p.CruiseKts, WindComponentKts(stop, p.Destination, p.WindKts)) +
		turnaround +
		LegDuration(r1, p.CruiseKts, WindComponentKts(p.Destination, stop, p.WindKts)) +
		stopTime +
		LegDuration(r2, p.CruiseKts, WindComponentKts(stop, p.Origin, p.WindKts))
	return total
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
