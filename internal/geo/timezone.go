package geo

import (
	"fmt"
	"math"
)

const (
	earthRadiusKm = 6371.0
	// Reference cities further than this do not decide the zone.
	maxReferenceDistanceKm = 800.0
)

// TimezoneAt derives an IANA timezone name from coordinates: the nearest
// reference city within range, otherwise a nautical Etc/GMT zone by longitude.
func TimezoneAt(lat, lon float64) string {
	best := ""
	bestDist := math.MaxFloat64
	for _, p := range builtinPlaces {
		d := haversineKm(lat, lon, p.lat, p.lon)
		if d < bestDist {
			bestDist = d
			best = p.tz
		}
	}
	if best != "" && bestDist <= maxReferenceDistanceKm {
		return best
	}
	return nauticalZone(lon)
}

// nauticalZone follows the Etc/GMT convention where the sign is inverted.
func nauticalZone(lon float64) string {
	offset := int(math.Round(lon / 15))
	switch {
	case offset == 0:
		return "Etc/GMT"
	case offset > 0:
		return fmt.Sprintf("Etc/GMT-%d", offset)
	default:
		return fmt.Sprintf("Etc/GMT+%d", -offset)
	}
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
