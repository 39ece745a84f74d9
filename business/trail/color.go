package trail

// Palette is an ordered list of named colors assigned to routes
type Palette []string

// defaultPalette is never modified, DefaultPalette hands out copies
var defaultPalette = Palette{"red", "blue", "green", "orange", "purple", "brown"}

// DefaultPalette returns a copy of the palette used when none is configured
func DefaultPalette() Palette {
	return defaultPalette.clone()
}

func (p Palette) clone() Palette {
	result := make(Palette, len(p))
	copy(result, p)
	return result
}

// RouteIds returns the distinct route ids of trails in order of first appearance
func RouteIds(trails []Trail) []string {
	seen := make(map[string]bool)
	routeIds := make([]string, 0)
	for _, t := range trails {
		if seen[t.RouteId] {
			continue
		}
		seen[t.RouteId] = true
		routeIds = append(routeIds, t.RouteId)
	}
	return routeIds
}

// RouteColors assigns each route the palette color at its position in the distinct route ordering,
// wrapping around the palette. Once there are more routes than colors, routes share colors.
type RouteColors struct {
	palette   Palette
	routeIds  []string
	positions map[string]int
}

// NewRouteColors builds RouteColors for routeIds. An empty palette falls back to DefaultPalette.
// routeIds are expected to be distinct, a repeated id keeps its first position
func NewRouteColors(routeIds []string, palette Palette) *RouteColors {
	if len(palette) == 0 {
		palette = defaultPalette
	}
	r := RouteColors{
		palette:   palette.clone(),
		routeIds:  make([]string, 0, len(routeIds)),
		positions: make(map[string]int),
	}
	for _, routeId := range routeIds {
		if _, present := r.positions[routeId]; present {
			continue
		}
		r.positions[routeId] = len(r.routeIds)
		r.routeIds = append(r.routeIds, routeId)
	}
	return &r
}

// Color returns the color for routeId, false if routeId was not part of the route set
func (r *RouteColors) Color(routeId string) (string, bool) {
	position, present := r.positions[routeId]
	if !present {
		return "", false
	}
	return r.palette[position%len(r.palette)], true
}

// Map returns route id to color for every route in the route set
func (r *RouteColors) Map() map[string]string {
	result := make(map[string]string, len(r.routeIds))
	for _, routeId := range r.routeIds {
		result[routeId], _ = r.Color(routeId)
	}
	return result
}
