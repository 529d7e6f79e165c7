package domain

import (
	"context"
	"log/slog"
)

// ResolveLocation fills the record's Location from a reverse geocode of its
// coordinates. A nil resolver, invalid coordinates, or a failed lookup leave
// the record unchanged.
func ResolveLocation(ctx context.Context, rec PredictionRecord, resolver LocationResolver, logger *slog.Logger) PredictionRecord {
	if resolver == nil || rec.Location != "" {
		return rec
	}
	if !ValidCoordinates(rec.Latitude, rec.Longitude) {
		return rec
	}

	place, err := resolver.ReverseGeocode(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"record_id", rec.ID,
			"lat", rec.Latitude,
			"lon", rec.Longitude,
			"error", err,
		)
		return rec
	}

	switch {
	case place.FormattedAddress != "":
		rec.Location = place.FormattedAddress
	case place.PlaceName != "":
		rec.Location = place.PlaceName
	}
	return rec
}
