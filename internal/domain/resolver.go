package domain

import "context"

// Place contains location data returned by a reverse geocoding provider.
type Place struct {
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// LocationResolver names the place at a coordinate.
type LocationResolver interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}
