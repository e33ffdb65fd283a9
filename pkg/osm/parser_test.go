package osm

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

func tags(kv ...string) osm.Tags {
	var t osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		t = append(t, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return t
}

func TestIsCarAccessible(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"residential road", tags("highway", "residential"), true},
		{"motorway", tags("highway", "motorway"), true},
		{"service road", tags("highway", "service"), true},
		{"living street", tags("highway", "living_street"), true},
		{"footway", tags("highway", "footway"), false},
		{"cycleway", tags("highway", "cycleway"), false},
		{"private access", tags("highway", "residential", "access", "private"), false},
		{"no access", tags("highway", "residential", "access", "no"), false},
		{"motor_vehicle=no", tags("highway", "residential", "motor_vehicle", "no"), false},
		{"pedestrian plaza", tags("highway", "service", "area", "yes"), false},
		{"no highway tag", tags("name", "Some Street"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCarAccessible(tt.tags); got != tt.want {
				t.Errorf("isCarAccessible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectionFlags(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		fwd  bool
		bwd  bool
	}{
		{"default bidirectional", tags("highway", "residential"), true, true},
		{"motorway implied oneway", tags("highway", "motorway"), true, false},
		{"motorway_link implied oneway", tags("highway", "motorway_link"), true, false},
		{"roundabout implied oneway", tags("highway", "residential", "junction", "roundabout"), true, false},
		{"oneway=yes", tags("highway", "primary", "oneway", "yes"), true, false},
		{"oneway=true", tags("highway", "primary", "oneway", "true"), true, false},
		{"oneway=1", tags("highway", "primary", "oneway", "1"), true, false},
		{"oneway=-1", tags("highway", "primary", "oneway", "-1"), false, true},
		{"oneway=reverse", tags("highway", "primary", "oneway", "reverse"), false, true},
		{"oneway=no overrides implied", tags("highway", "motorway", "oneway", "no"), true, true},
		{"oneway=reversible", tags("highway", "primary", "oneway", "reversible"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, bwd := directionFlags(tt.tags)
			if fwd != tt.fwd || bwd != tt.bwd {
				t.Errorf("directionFlags() = (%v, %v), want (%v, %v)", fwd, bwd, tt.fwd, tt.bwd)
			}
		})
	}
}

func TestWaySpeed(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want float64
	}{
		{"highway default", tags("highway", "residential"), 30},
		{"maxspeed", tags("highway", "residential", "maxspeed", "40"), 40},
		{"maxspeed mph", tags("highway", "primary", "maxspeed", "30 mph"), 30 * 1.609344},
		{"unparseable maxspeed", tags("highway", "primary", "maxspeed", "signals"), 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := waySpeed(tt.tags); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("waySpeed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("1.2, 103.6,1.5,104.1")
	if err != nil {
		t.Fatal(err)
	}
	want := BBox{MinLat: 1.2, MinLng: 103.6, MaxLat: 1.5, MaxLng: 104.1}
	if b != want {
		t.Errorf("ParseBBox = %+v, want %+v", b, want)
	}
	if !b.Contains(1.3, 103.8) || b.Contains(1.6, 103.8) {
		t.Error("Contains disagrees with the box")
	}

	if b, err := ParseBBox(""); err != nil || !b.IsZero() {
		t.Errorf("empty bbox = %+v, %v", b, err)
	}
	for _, bad := range []string{"1,2,3", "a,1,2,3", "2,1,1,2"} {
		if _, err := ParseBBox(bad); err == nil {
			t.Errorf("ParseBBox(%q) accepted", bad)
		}
	}
}

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="1.3000" lon="103.8000"/>
  <node id="2" lat="1.3000" lon="103.8010"/>
  <node id="3" lat="1.3010" lon="103.8010"/>
  <node id="4" lat="1.3010" lon="103.8000"/>
  <node id="5" lat="1.3050" lon="103.8050"/>
  <node id="9" lat="1.4000" lon="103.9000"/>
  <way id="100">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="101">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="primary"/>
    <tag k="oneway" v="yes"/>
    <tag k="maxspeed" v="50"/>
  </way>
  <way id="102">
    <nd ref="4"/><nd ref="5"/>
    <tag k="highway" v="footway"/>
  </way>
  <way id="103">
    <nd ref="4"/><nd ref="1"/><nd ref="9"/>
    <tag k="highway" v="service"/>
  </way>
</osm>`

func parseSample(t *testing.T, opt ParseOptions) *ParseResult {
	t.Helper()
	res, err := Parse(context.Background(), XML(strings.NewReader(sampleOSM)), opt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestParseXML(t *testing.T) {
	res := parseSample(t, ParseOptions{})

	// 1-2, 2-3, 3-4, 4-1, 1-9; the footway is dropped.
	if len(res.Edges) != 5 {
		t.Fatalf("got %d edges, want 5", len(res.Edges))
	}
	if _, ok := res.NodeLat[5]; ok {
		t.Error("node 5 is only on a footway but was collected")
	}

	oneway := res.Edges[2]
	if oneway.FromNodeID != 3 || oneway.ToNodeID != 4 || !oneway.Forward || oneway.Backward {
		t.Errorf("oneway segment = %+v", oneway)
	}
	if oneway.SpeedKmh != 50 {
		t.Errorf("speed = %v, want 50", oneway.SpeedKmh)
	}
	if d := oneway.DistanceMeters; d < 105 || d > 117 {
		t.Errorf("distance = %v, want ~111 m", d)
	}
}

func TestParseBBoxFilter(t *testing.T) {
	res := parseSample(t, ParseOptions{BBox: BBox{MinLat: 1.29, MaxLat: 1.31, MinLng: 103.79, MaxLng: 103.81}})
	if len(res.Edges) != 4 {
		t.Fatalf("got %d edges, want 4", len(res.Edges))
	}
	for _, e := range res.Edges {
		if e.FromNodeID == 9 || e.ToNodeID == 9 {
			t.Errorf("edge %+v leaves the box", e)
		}
	}
}

func TestBuildGraph(t *testing.T) {
	res := parseSample(t, ParseOptions{})
	g, err := BuildGraph(res, weighting.FastestWeighting{})
	if err != nil {
		t.Fatal(err)
	}

	if g.NumNodes() != 5 || g.NumEdges() != 5 {
		t.Fatalf("graph has %d nodes, %d edges", g.NumNodes(), g.NumEdges())
	}
	// Dense ids in first-seen order: OSM 1, 2, 3, 4, 9.
	if g.Lat(4) != 1.4 || g.Lon(4) != 103.9 {
		t.Errorf("node 4 at (%v, %v)", g.Lat(4), g.Lon(4))
	}

	e := g.Edge(2)
	if e.Base != 2 || e.Adj != 3 || !e.Forward() || e.Backward() {
		t.Errorf("oneway edge = %+v", e)
	}
	if got := weighting.SpeedKmh(e.Flags); got != 50 {
		t.Errorf("stored speed %v, want 50", got)
	}
	dist := weighting.FastestWeighting{}.RevertWeight(e.Weight, e.Flags)
	if math.Abs(dist-res.Edges[2].DistanceMeters) > 1e-6 {
		t.Errorf("weight reverts to %v m, want %v", dist, res.Edges[2].DistanceMeters)
	}

	for id := range graph.EdgeID(g.NumEdges()) {
		if g.Edge(id).Weight <= 0 {
			t.Errorf("edge %d has weight %v", id, g.Edge(id).Weight)
		}
	}
}

func TestBuildGraphRejectsInfiniteWeight(t *testing.T) {
	res := &ParseResult{
		Edges: []RawEdge{
			{FromNodeID: 1, ToNodeID: 2, DistanceMeters: 10, SpeedKmh: 50, Forward: true},
			{FromNodeID: 2, ToNodeID: 3, DistanceMeters: math.Inf(1), SpeedKmh: 50, Forward: true},
		},
		NodeLat: map[osm.NodeID]float64{1: 1, 2: 1, 3: 1},
		NodeLon: map[osm.NodeID]float64{1: 103, 2: 103.1, 3: 103.2},
	}
	if _, err := BuildGraph(res, weighting.ShortestWeighting{}); !errors.Is(err, graph.ErrInvalidEdge) {
		t.Fatalf("err = %v, want ErrInvalidEdge", err)
	}
}
