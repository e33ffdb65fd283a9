// Package osm extracts a car road network from OpenStreetMap extracts.
package osm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/geo"
)

// RawEdge is one way segment between two consecutive way nodes.
type RawEdge struct {
	FromNodeID     osm.NodeID
	ToNodeID       osm.NodeID
	DistanceMeters float64
	SpeedKmh       float64
	Forward        bool // From -> To is drivable
	Backward       bool // To -> From is drivable
}

// ParseResult holds the output of parsing an OSM extract.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// carHighways maps highway tag values accessible by car to a default
// speed in km/h.
var carHighways = map[string]float64{
	"motorway":       100,
	"motorway_link":  60,
	"trunk":          80,
	"trunk_link":     50,
	"primary":        65,
	"primary_link":   45,
	"secondary":      60,
	"secondary_link": 40,
	"tertiary":       50,
	"tertiary_link":  35,
	"unclassified":   40,
	"residential":    30,
	"living_street":  10,
	"service":        20,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	if _, ok := carHighways[tags.Find("highway")]; !ok {
		return false
	}
	// Pedestrian plazas.
	if tags.Find("area") == "yes" {
		return false
	}
	switch tags.Find("access") {
	case "no", "private":
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	hw := tags.Find("highway")
	// Implied oneway.
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		// Time-dependent, skip entirely.
		forward, backward = false, false
	}
	return forward, backward
}

// waySpeed returns the maxspeed tag in km/h, falling back to the highway
// default. Values in mph are converted.
func waySpeed(tags osm.Tags) float64 {
	def := carHighways[tags.Find("highway")]
	raw := strings.TrimSpace(tags.Find("maxspeed"))
	if raw == "" {
		return def
	}
	factor := 1.0
	if v, ok := strings.CutSuffix(raw, "mph"); ok {
		raw, factor = strings.TrimSpace(v), 1.609344
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v * factor
}

// wayInfo holds parsed way data collected during pass 1.
type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	SpeedKmh float64
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseBBox reads "minLat,minLng,maxLat,maxLng". An empty string yields the
// zero box.
func ParseBBox(s string) (BBox, error) {
	if s == "" {
		return BBox{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want minLat,minLng,maxLat,maxLng", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := BBox{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return BBox{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return b, nil
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   BBox // if non-zero, filter edges to this bounding box
	Logger *zap.Logger
}

// Source opens a fresh scan over the input. Parse calls it twice: once for
// ways, once for nodes.
type Source func(ctx context.Context, ways bool) (osm.Scanner, error)

// PBF reads a .osm.pbf stream, seeking back to the start for every pass.
func PBF(rs io.ReadSeeker) Source {
	return func(ctx context.Context, ways bool) (osm.Scanner, error) {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		s := osmpbf.New(ctx, rs, 1)
		s.SkipNodes = ways
		s.SkipWays = !ways
		s.SkipRelations = true
		return s, nil
	}
}

// XML reads a plain .osm stream.
func XML(rs io.ReadSeeker) Source {
	return func(ctx context.Context, _ bool) (osm.Scanner, error) {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		return osmxml.New(ctx, rs), nil
	}
}

// ParseFile parses path as XML when it ends in .osm and as PBF otherwise.
func ParseFile(ctx context.Context, path string, opts ParseOptions) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src := PBF(f)
	if strings.HasSuffix(path, ".osm") {
		src = XML(f)
	}
	return Parse(ctx, src, opts)
}

// Parse scans the input twice and returns every car-drivable way segment.
func Parse(ctx context.Context, src Source, opt ParseOptions) (*ParseResult, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Pass 1: ways, and the node IDs they reference.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner, err := src(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isCarAccessible(w.Tags) {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{
			NodeIDs:  nodeIDs,
			Forward:  fwd,
			Backward: bwd,
			SpeedKmh: waySpeed(w.Tags),
		})
	}
	err = scanner.Err()
	scanner.Close()
	if err != nil {
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	log.Info("pass 1 complete", zap.Int("ways", len(ways)), zap.Int("referenced_nodes", len(referencedNodes)))

	// Pass 2: coordinates of referenced nodes only.
	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner, err = src(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	err = scanner.Err()
	scanner.Close()
	if err != nil {
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	log.Info("pass 2 complete", zap.Int("coordinates", len(nodeLat)))

	var (
		edges        []RawEdge
		skippedEdges int
		bboxFiltered int
	)
	useBBox := !opt.BBox.IsZero()
	for _, w := range ways {
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID, toID := w.NodeIDs[i], w.NodeIDs[i+1]
			if fromID == toID {
				continue
			}

			fromLat, fromOk := nodeLat[fromID]
			toLat, toOk := nodeLat[toID]
			if !fromOk || !toOk {
				skippedEdges++
				continue
			}
			fromLon, toLon := nodeLon[fromID], nodeLon[toID]

			if useBBox && (!opt.BBox.Contains(fromLat, fromLon) || !opt.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}

			edges = append(edges, RawEdge{
				FromNodeID:     fromID,
				ToNodeID:       toID,
				DistanceMeters: geo.Haversine(fromLat, fromLon, toLat, toLon),
				SpeedKmh:       w.SpeedKmh,
				Forward:        w.Forward,
				Backward:       w.Backward,
			})
		}
	}

	if skippedEdges > 0 {
		log.Warn("skipped edges with missing node coordinates", zap.Int("edges", skippedEdges))
	}
	if bboxFiltered > 0 {
		log.Info("filtered edges outside bounding box", zap.Int("edges", bboxFiltered))
	}
	log.Info("parsed road segments", zap.Int("edges", len(edges)))

	return &ParseResult{
		Edges:   edges,
		NodeLat: nodeLat,
		NodeLon: nodeLon,
	}, nil
}
