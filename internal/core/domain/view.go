package domain

// VenueView is a venue as presented on the map.
type VenueView struct {
	Venue
	Visited  bool    `json:"visited"`
	Distance float64 `json:"distance_m"` // computed from the map centre
}

// View is an immutable snapshot of a check-in view.
type View struct {
	SessionID      string        `json:"session_id,omitempty"`
	Identity       Identity      `json:"identity"`
	Epoch          uint64        `json:"epoch"`
	Revision       uint64        `json:"revision"` // grows with every state change
	Station        string        `json:"station"`
	PendingStation string        `json:"pending_station,omitempty"`
	Center         Coordinate    `json:"center"`
	Venues         []VenueView   `json:"venues"`
	VisitedIDs     []string      `json:"visited_ids"`
	PendingVisit   *PendingVisit `json:"pending_visit,omitempty"`
	Submitting     bool          `json:"submitting"`
	LoadingVenues  bool          `json:"loading_venues"`
	LoadingVisited bool          `json:"loading_visited"`
	Conquered      bool          `json:"conquered"`
}
