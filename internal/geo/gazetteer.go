package geo

import (
	"context"
	"strings"
)

type place struct {
	city      string
	aliases   []string
	country   string
	countries []string
	lat, lon  float64
	tz        string
}

// builtinPlaces doubles as the reference set for TimezoneAt.
var builtinPlaces = []place{
	{city: "London", country: "United Kingdom", countries: []string{"uk", "gb", "england", "great britain"}, lat: 51.5074, lon: -0.1278, tz: "Europe/London"},
	{city: "Manchester", country: "United Kingdom", countries: []string{"uk", "gb", "england"}, lat: 53.4808, lon: -2.2426, tz: "Europe/London"},
	{city: "Edinburgh", country: "United Kingdom", countries: []string{"uk", "gb", "scotland"}, lat: 55.9533, lon: -3.1883, tz: "Europe/London"},
	{city: "Dublin", country: "Ireland", countries: []string{"ie"}, lat: 53.3498, lon: -6.2603, tz: "Europe/Dublin"},
	{city: "Paris", country: "France", countries: []string{"fr"}, lat: 48.8566, lon: 2.3522, tz: "Europe/Paris"},
	{city: "Berlin", country: "Germany", countries: []string{"de"}, lat: 52.52, lon: 13.405, tz: "Europe/Berlin"},
	{city: "Madrid", country: "Spain", countries: []string{"es"}, lat: 40.4168, lon: -3.7038, tz: "Europe/Madrid"},
	{city: "Rome", aliases: []string{"roma"}, country: "Italy", countries: []string{"it"}, lat: 41.9028, lon: 12.4964, tz: "Europe/Rome"},
	{city: "Moscow", country: "Russia", countries: []string{"ru"}, lat: 55.7558, lon: 37.6173, tz: "Europe/Moscow"},
	{city: "Istanbul", country: "Turkey", countries: []string{"tr", "turkiye"}, lat: 41.0082, lon: 28.9784, tz: "Europe/Istanbul"},
	{city: "Cairo", country: "Egypt", countries: []string{"eg"}, lat: 30.0444, lon: 31.2357, tz: "Africa/Cairo"},
	{city: "Lagos", country: "Nigeria", countries: []string{"ng"}, lat: 6.5244, lon: 3.3792, tz: "Africa/Lagos"},
	{city: "Nairobi", country: "Kenya", countries: []string{"ke"}, lat: -1.2921, lon: 36.8219, tz: "Africa/Nairobi"},
	{city: "Johannesburg", country: "South Africa", countries: []string{"za", "rsa"}, lat: -26.2041, lon: 28.0473, tz: "Africa/Johannesburg"},
	{city: "Dubai", country: "United Arab Emirates", countries: []string{"uae", "ae"}, lat: 25.2048, lon: 55.2708, tz: "Asia/Dubai"},
	{city: "Karachi", country: "Pakistan", countries: []string{"pk"}, lat: 24.8607, lon: 67.0011, tz: "Asia/Karachi"},
	{city: "Mumbai", aliases: []string{"bombay"}, country: "India", countries: []string{"in", "bharat"}, lat: 19.076, lon: 72.8777, tz: "Asia/Kolkata"},
	{city: "Delhi", aliases: []string{"new delhi"}, country: "India", countries: []string{"in", "bharat"}, lat: 28.6139, lon: 77.209, tz: "Asia/Kolkata"},
	{city: "Kolkata", aliases: []string{"calcutta"}, country: "India", countries: []string{"in", "bharat"}, lat: 22.5726, lon: 88.3639, tz: "Asia/Kolkata"},
	{city: "Chennai", aliases: []string{"madras"}, country: "India", countries: []string{"in", "bharat"}, lat: 13.0827, lon: 80.2707, tz: "Asia/Kolkata"},
	{city: "Bengaluru", aliases: []string{"bangalore"}, country: "India", countries: []string{"in", "bharat"}, lat: 12.9716, lon: 77.5946, tz: "Asia/Kolkata"},
	{city: "Hyderabad", country: "India", countries: []string{"in", "bharat"}, lat: 17.385, lon: 78.4867, tz: "Asia/Kolkata"},
	{city: "Pune", country: "India", countries: []string{"in", "bharat"}, lat: 18.5204, lon: 73.8567, tz: "Asia/Kolkata"},
	{city: "Jaipur", country: "India", countries: []string{"in", "bharat"}, lat: 26.9124, lon: 75.7873, tz: "Asia/Kolkata"},
	{city: "Varanasi", aliases: []string{"benares", "kashi"}, country: "India", countries: []string{"in", "bharat"}, lat: 25.3176, lon: 82.9739, tz: "Asia/Kolkata"},
	{city: "Kathmandu", country: "Nepal", countries: []string{"np"}, lat: 27.7172, lon: 85.324, tz: "Asia/Kathmandu"},
	{city: "Dhaka", country: "Bangladesh", countries: []string{"bd"}, lat: 23.8103, lon: 90.4125, tz: "Asia/Dhaka"},
	{city: "Colombo", country: "Sri Lanka", countries: []string{"lk"}, lat: 6.9271, lon: 79.8612, tz: "Asia/Colombo"},
	{city: "Bangkok", country: "Thailand", countries: []string{"th"}, lat: 13.7563, lon: 100.5018, tz: "Asia/Bangkok"},
	{city: "Singapore", country: "Singapore", countries: []string{"sg"}, lat: 1.3521, lon: 103.8198, tz: "Asia/Singapore"},
	{city: "Beijing", aliases: []string{"peking"}, country: "China", countries: []string{"cn", "prc"}, lat: 39.9042, lon: 116.4074, tz: "Asia/Shanghai"},
	{city: "Tokyo", country: "Japan", countries: []string{"jp"}, lat: 35.6762, lon: 139.6503, tz: "Asia/Tokyo"},
	{city: "Sydney", country: "Australia", countries: []string{"au"}, lat: -33.8688, lon: 151.2093, tz: "Australia/Sydney"},
	{city: "Auckland", country: "New Zealand", countries: []string{"nz"}, lat: -36.8485, lon: 174.7633, tz: "Pacific/Auckland"},
	{city: "New York", aliases: []string{"nyc", "new york city"}, country: "United States", countries: []string{"us", "usa", "ny"}, lat: 40.7128, lon: -74.006, tz: "America/New_York"},
	{city: "Chicago", country: "United States", countries: []string{"us", "usa", "il"}, lat: 41.8781, lon: -87.6298, tz: "America/Chicago"},
	{city: "Denver", country: "United States", countries: []string{"us", "usa", "co"}, lat: 39.7392, lon: -104.9903, tz: "America/Denver"},
	{city: "Los Angeles", aliases: []string{"la"}, country: "United States", countries: []string{"us", "usa", "ca"}, lat: 34.0522, lon: -118.2437, tz: "America/Los_Angeles"},
	{city: "Toronto", country: "Canada", countries: []string{"ca"}, lat: 43.6532, lon: -79.3832, tz: "America/Toronto"},
	{city: "Mexico City", aliases: []string{"cdmx"}, country: "Mexico", countries: []string{"mx"}, lat: 19.4326, lon: -99.1332, tz: "America/Mexico_City"},
	{city: "Sao Paulo", aliases: []string{"são paulo"}, country: "Brazil", countries: []string{"br"}, lat: -23.5505, lon: -46.6333, tz: "America/Sao_Paulo"},
	{city: "Buenos Aires", country: "Argentina", countries: []string{"ar"}, lat: -34.6037, lon: -58.3816, tz: "America/Argentina/Buenos_Aires"},
}

// Gazetteer is an in-memory Geocoder over a fixed list of well-known places.
type Gazetteer struct {
	places []place
}

// NewGazetteer returns a gazetteer over the built-in place list.
func NewGazetteer() *Gazetteer {
	return &Gazetteer{places: builtinPlaces}
}

// Resolve matches "City" or "City, Country" case-insensitively.
func (g *Gazetteer) Resolve(ctx context.Context, text string) (*Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm := normalizePlace(text)
	city, country, _ := strings.Cut(norm, ",")
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" {
		return nil, ErrNotFound
	}

	for _, p := range g.places {
		if !p.matchesCity(city) {
			continue
		}
		if country != "" && !p.matchesCountry(country) {
			continue
		}
		return &Location{
			Name:      p.city,
			Country:   p.country,
			Latitude:  p.lat,
			Longitude: p.lon,
			Timezone:  p.tz,
		}, nil
	}

	return nil, ErrNotFound
}

func (p place) matchesCity(city string) bool {
	if normalizePlace(p.city) == city {
		return true
	}
	for _, a := range p.aliases {
		if normalizePlace(a) == city {
			return true
		}
	}
	return false
}

func (p place) matchesCountry(country string) bool {
	if normalizePlace(p.country) == country {
		return true
	}
	for _, c := range p.countries {
		if c == country {
			return true
		}
	}
	return false
}
