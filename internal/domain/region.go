package domain

// Lane indices, one per supported macro-region. Lane assignment is fixed so
// a region's settlements stay ordered behind a single logical consumer.
const (
	LaneNorth    = 0
	LaneEast     = 1
	LaneWest     = 2
	LaneSouthern = 3
	LaneCentral  = 4

	LaneCount   = 5
	DefaultLane = LaneNorth
)

var countryLanes = map[string]int{
	// North Africa
	"Egypt": LaneNorth, "Algeria": LaneNorth, "Morocco": LaneNorth,
	"Tunisia": LaneNorth, "Libya": LaneNorth,
	// East Africa
	"Ethiopia": LaneEast, "Kenya": LaneEast, "Uganda": LaneEast,
	"Tanzania": LaneEast, "Sudan": LaneEast,
	// West Africa
	"Nigeria": LaneWest, "Ghana": LaneWest, "Cote dIvoire": LaneWest,
	"Senegal": LaneWest, "Mali": LaneWest,
	// Southern Africa
	"South Africa": LaneSouthern, "Angola": LaneSouthern, "Zambia": LaneSouthern,
	"Zimbabwe": LaneSouthern, "Botswana": LaneSouthern,
	// Central Africa
	"DRC": LaneCentral, "Cameroon": LaneCentral, "Chad": LaneCentral,
	"Republic of Congo": LaneCentral, "Central African Republic": LaneCentral,
}

// LaneFor maps a country to its processing lane. The mapping is pure and
// deterministic; unmapped countries fall back to the default lane.
func LaneFor(country string) int {
	if lane, ok := countryLanes[country]; ok {
		return lane
	}
	return DefaultLane
}

// SupportedCountry reports whether the country is a served jurisdiction.
func SupportedCountry(country string) bool {
	_, ok := countryLanes[country]
	return ok
}
