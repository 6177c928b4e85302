package usecases

import (
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// StationCatalog is the fixed list of stations a view can centre on.
// It is read-only after construction.
type StationCatalog struct {
	stations []domain.Station
	byName   map[string]domain.Station
}

// NewStationCatalog returns the catalog of Tokyo stations.
func NewStationCatalog() *StationCatalog {
	return NewStationCatalogFrom(defaultStations())
}

// NewStationCatalogFrom builds a catalog from an explicit list. The first
// entry is the default centre. Later duplicates of a name are ignored.
func NewStationCatalogFrom(stations []domain.Station) *StationCatalog {
	c := &StationCatalog{
		stations: make([]domain.Station, 0, len(stations)),
		byName:   make(map[string]domain.Station, len(stations)),
	}
	for _, s := range stations {
		if _, dup := c.byName[s.Name]; dup {
			continue
		}
		c.stations = append(c.stations, s)
		c.byName[s.Name] = s
	}
	return c
}

// All returns a copy of every station in catalog order.
func (c *StationCatalog) All() []domain.Station {
	out := make([]domain.Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Find looks a station up by its display name.
func (c *StationCatalog) Find(name string) (domain.Station, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Default is the first catalog entry.
func (c *StationCatalog) Default() domain.Station {
	if len(c.stations) == 0 {
		return domain.Station{}
	}
	return c.stations[0]
}

func defaultStations() []domain.Station {
	return []domain.Station{
		{Name: "Tokyo Station", Latitude: 35.681236, Longitude: 139.767125},
		{Name: "Shinjuku Station", Latitude: 35.689592, Longitude: 139.700413},
		{Name: "Shibuya Station", Latitude: 35.658034, Longitude: 139.701636},
		{Name: "Ikebukuro Station", Latitude: 35.729503, Longitude: 139.7109},
		{Name: "Ueno Station", Latitude: 35.713768, Longitude: 139.777254},
		{Name: "Akihabara Station", Latitude: 35.698353, Longitude: 139.773114},
		{Name: "Ginza Station", Latitude: 35.674261, Longitude: 139.770667},
		{Name: "Ebisu Station", Latitude: 35.64669, Longitude: 139.710106},
		{Name: "Shinagawa Station", Latitude: 35.628471, Longitude: 139.73876},
		{Name: "Meguro Station", Latitude: 35.633998, Longitude: 139.715828},
		{Name: "Hamamatsucho Station", Latitude: 35.655646, Longitude: 139.756749},
		{Name: "Shimokitazawa Station", Latitude: 35.662837, Longitude: 139.667571},
		{Name: "Kichijoji Station", Latitude: 35.702259, Longitude: 139.580333},
		{Name: "Harajuku Station", Latitude: 35.670168, Longitude: 139.702687},
		{Name: "Asakusa Station", Latitude: 35.714555, Longitude: 139.798023},
	}
}
