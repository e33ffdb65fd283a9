package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/routing"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router   routing.Router
	stats    StatsResponse
	validate *validator.Validate
	log      *zap.Logger
}

// NewHandlers creates handlers with the given router.
func NewHandlers(router routing.Router, stats StatsResponse, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handlers{
		router:   router,
		stats:    stats,
		validate: v,
		log:      log,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "content type must be application/json")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "", "")
		return
	}
	h.route(w, r, req)
}

// HandleRouteQuery handles GET /api/v1/route?start_lat=&start_lng=&end_lat=&end_lng=.
func (h *Handlers) HandleRouteQuery(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	var (
		req RouteRequest
		err error
	)
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"start_lat", &req.Start.Lat},
		{"start_lng", &req.Start.Lng},
		{"end_lat", &req.End.Lat},
		{"end_lng", &req.End.Lng},
	} {
		if *p.dst, err = strconv.ParseFloat(q.Get(p.name), 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", p.name, "required and must be a number")
			return
		}
	}
	h.route(w, r, req)
}

func (h *Handlers) route(w http.ResponseWriter, r *http.Request, req RouteRequest) {
	if field, ok := h.check(req); !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", field, "")
		return
	}

	result, err := h.router.Route(r.Context(),
		routing.LatLng{Lat: req.Start.Lat, Lng: req.Start.Lng},
		routing.LatLng{Lat: req.End.Lat, Lng: req.End.Lng})
	if err != nil {
		h.writeRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result, false))
}

// HandleRouteNodes handles GET /api/v1/route/nodes?source=&target=.
func (h *Handlers) HandleRouteNodes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	var req NodeRouteRequest
	for _, p := range []struct {
		name string
		dst  *uint32
	}{
		{"source", &req.Source},
		{"target", &req.Target},
	} {
		v, err := strconv.ParseUint(q.Get(p.name), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", p.name, "required and must be a node id")
			return
		}
		*p.dst = uint32(v)
	}

	result, err := h.router.RouteNodes(r.Context(), req.Source, req.Target)
	if err != nil {
		h.writeRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result, true))
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.stats)
}

// check validates req and returns the first offending field, e.g. "start.lat".
func (h *Handlers) check(req RouteRequest) (string, bool) {
	err := h.validate.Struct(req)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		_, field, _ := strings.Cut(verrs[0].Namespace(), ".")
		return field, false
	}
	return "", false
}

func (h *Handlers) writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusNotFound, "point_too_far_from_road", "", err.Error())
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "", "")
	case errors.Is(err, graph.ErrNodeOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "unknown_node", "", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "", "")
	default:
		h.log.Error("route failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
	}
}

func toResponse(res *routing.RouteResult, withNodes bool) RouteResponse {
	geom := make([]LatLngJSON, len(res.Points))
	for i, p := range res.Points {
		geom[i] = LatLngJSON{Lat: p.Lat, Lng: p.Lng}
	}
	resp := RouteResponse{
		DistanceMeters: res.DistanceMeters,
		DurationMillis: res.DurationMillis,
		Weight:         res.Weight,
		Polyline:       res.Polyline,
		Geometry:       geom,
		VisitedNodes:   res.Visited,
	}
	if withNodes {
		resp.Nodes = res.Nodes
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field, Message: msg})
}
