package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/metrics"
	"github.com/azybler/ch_router/pkg/weighting"
)

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// RouteResult is the output of a route query.
type RouteResult struct {
	DistanceMeters float64
	DurationMillis int64
	Weight         float64
	Nodes          []uint32
	Points         []LatLng
	Polyline       string // Google encoded polyline, precision 5
	Visited        int
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
	RouteNodes(ctx context.Context, source, target uint32) (*RouteResult, error)
}

// Options configures an Engine.
type Options struct {
	MaxVisitedNodes int
	MaxSnapMeters   float64
}

// Engine implements Router over a prepared graph. Queries are pooled so
// concurrent requests never share search state.
type Engine struct {
	g       *graph.Graph
	w       weighting.Weighting
	snapper *Snapper
	queries sync.Pool
	log     *zap.Logger
}

// NewEngine creates a routing engine for a prepared graph.
func NewEngine(g *graph.Graph, w weighting.Weighting, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		g:       g,
		w:       w,
		snapper: NewSnapper(g, opts.MaxSnapMeters),
		log:     log,
	}
	e.queries.New = func() any {
		return NewQuery(g, w, QueryOptions{MaxVisitedNodes: opts.MaxVisitedNodes})
	}
	metrics.GraphInfo.WithLabelValues("nodes").Set(float64(g.NumNodes()))
	metrics.GraphInfo.WithLabelValues("edges").Set(float64(g.NumOriginalEdges()))
	metrics.GraphInfo.WithLabelValues("shortcuts").Set(float64(g.NumShortcuts()))
	return e
}

// Graph returns the graph served by the engine.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Weighting returns the weighting the graph was prepared with.
func (e *Engine) Weighting() weighting.Weighting { return e.w }

// Route snaps both points to the road network and returns the shortest
// route between the snapped nodes.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	from, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		metrics.SnapFailures.Inc()
		return nil, fmt.Errorf("start: %w", err)
	}
	to, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		metrics.SnapFailures.Inc()
		return nil, fmt.Errorf("end: %w", err)
	}
	return e.RouteNodes(ctx, from.Node, to.Node)
}

// RouteNodes returns the shortest route between two graph nodes.
func (e *Engine) RouteNodes(ctx context.Context, source, target uint32) (*RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := e.queries.Get().(*Query)
	defer e.queries.Put(q)

	start := time.Now()
	path, err := q.FindPath(source, target)
	elapsed := time.Since(start)
	metrics.QueryVisited.Observe(float64(q.Visited()))
	switch {
	case err != nil:
		metrics.QueryDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		if errors.Is(err, graph.ErrStorageInconsistency) {
			e.log.Error("unpacking failed", zap.Uint32("source", source), zap.Uint32("target", target), zap.Error(err))
		}
		return nil, err
	case !path.Found:
		metrics.QueryDuration.WithLabelValues("unreachable").Observe(elapsed.Seconds())
		return nil, ErrNoRoute
	}
	metrics.QueryDuration.WithLabelValues("found").Observe(elapsed.Seconds())

	e.log.Debug("route",
		zap.Uint32("source", source),
		zap.Uint32("target", target),
		zap.Int("visited", q.Visited()),
		zap.Duration("elapsed", elapsed))
	return e.result(path, q.Visited()), nil
}

func (e *Engine) result(p *Path, visited int) *RouteResult {
	points := make([]LatLng, len(p.Nodes))
	coords := make([][]float64, len(p.Nodes))
	for i, n := range p.Nodes {
		lat, lng := e.g.Lat(n), e.g.Lon(n)
		points[i] = LatLng{Lat: lat, Lng: lng}
		coords[i] = []float64{lat, lng}
	}
	return &RouteResult{
		DistanceMeters: p.Distance,
		DurationMillis: p.Millis,
		Weight:         p.Weight,
		Nodes:          p.Nodes,
		Points:         points,
		Polyline:       string(polyline.EncodeCoords(coords)),
		Visited:        visited,
	}
}
