package domain

import (
	"time"
)

// Station is a named transit station the map can be centred on.
type Station struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinate returns the station location as a map focus.
func (s Station) Coordinate() Coordinate {
	return Coordinate{Lat: s.Latitude, Lng: s.Longitude}
}

// Venue is an izakaya returned by the listing service for a coordinate.
type Venue struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	PhotoURL string  `json:"photo_url,omitempty"`
	PageURL  string  `json:"page_url,omitempty"`
}

// Identity is supplied by the session collaborator. An empty UserID means
// the user is anonymous.
type Identity struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Anonymous reports whether no user id is known.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Visit is one recorded check-in at a venue.
type Visit struct {
	UserID       string    `json:"user_id"`
	RestaurantID string    `json:"restaurant_id"`
	Rating       int       `json:"rating"`
	VisitedAt    time.Time `json:"visited_at"`
}

// PendingVisit is the rating dialog state between selecting a venue and
// submitting or cancelling.
type PendingVisit struct {
	VenueID string `json:"venue_id"`
	Rating  int    `json:"rating"`
}

// Rating bounds.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 3
)

// ValidRating reports whether r is one of 1..5.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Conquest is awarded when every venue around a station has been visited.
type Conquest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Station     string    `json:"station"`
	VenueCount  int       `json:"venue_count"`
	ConqueredAt time.Time `json:"conquered_at"`
}
