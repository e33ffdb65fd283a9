package api

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Start LatLngJSON `json:"start"`
	End   LatLngJSON `json:"end"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// NodeRouteRequest addresses GET /api/v1/route/nodes by graph node id.
type NodeRouteRequest struct {
	Source uint32 `json:"source"`
	Target uint32 `json:"target"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	DistanceMeters float64      `json:"distance_meters"`
	DurationMillis int64        `json:"duration_millis"`
	Weight         float64      `json:"weight"`
	Polyline       string       `json:"polyline"`
	Geometry       []LatLngJSON `json:"geometry"`
	Nodes          []uint32     `json:"nodes,omitempty"`
	VisitedNodes   int          `json:"visited_nodes"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes     int    `json:"num_nodes"`
	NumEdges     int    `json:"num_edges"`
	NumShortcuts int    `json:"num_shortcuts"`
	Weighting    string `json:"weighting"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
