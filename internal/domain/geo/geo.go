package geo

import (
	"github.com/google/uuid"
)

// LatLng is a bare coordinate pair, used for polyline points
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location represents a resolved place: coordinates plus a display address.
// Produced by geocoding/search or device GPS; treated as an immutable value.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Valid reports whether the location carries plausible coordinates
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180 &&
		(l.Latitude != 0 || l.Longitude != 0)
}

// LatLng returns the coordinate pair of the location
func (l Location) LatLng() LatLng {
	return LatLng{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Route is a resolved path between two locations. It is never persisted;
// a new one is resolved whenever either endpoint changes.
type Route struct {
	ID              uuid.UUID `json:"id"`
	Start           Location  `json:"start"`
	End             Location  `json:"end"`
	Polyline        []LatLng  `json:"polyline"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// DistanceKM returns the route distance in kilometers
func (r *Route) DistanceKM() float64 {
	return r.DistanceMeters / 1000.0
}

// DurationMinutes returns the route duration in whole minutes, rounded up
func (r *Route) DurationMinutes() int {
	if r.DurationSeconds <= 0 {
		return 0
	}
	return int((r.DurationSeconds + 59) / 60)
}
