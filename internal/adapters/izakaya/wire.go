package izakaya

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// shop is the subset of a Hotpepper shop record the service uses.
type shop struct {
	ID    flexString `json:"id"`
	Name  string     `json:"name"`
	Lat   flexFloat  `json:"lat"`
	Lng   flexFloat  `json:"lng"`
	Photo struct {
		PC struct {
			L string `json:"l"`
		} `json:"pc"`
	} `json:"photo"`
	URLs struct {
		PC string `json:"pc"`
	} `json:"urls"`
}

func (s shop) venue() domain.Venue {
	return domain.Venue{
		ID:       string(s.ID),
		Name:     s.Name,
		Lat:      float64(s.Lat),
		Lng:      float64(s.Lng),
		PhotoURL: s.Photo.PC.L,
		PageURL:  s.URLs.PC,
	}
}

type visitedRow struct {
	RestaurantID flexString `json:"restaurant_id"`
}

type markAsEaten struct {
	UserID       string `json:"user_id"`
	RestaurantID string `json:"restaurant_id"`
	Rating       int    `json:"rating"`
	VisitedAt    string `json:"visited_at"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string (Hotpepper sends both).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
