// Package weighting maps edge distance and flags to search weights and back.
package weighting

import (
	"fmt"
	"math"

	"github.com/azybler/ch_router/pkg/graph"
)

// Weighting converts between real distance and the weight stored on edges.
// Searches only compare weights; RevertWeight and CalcMillis are used when
// reporting a finished path.
type Weighting interface {
	Name() string
	CalcWeight(distanceMeters float64, flags graph.Flags) float64
	RevertWeight(weight float64, flags graph.Flags) float64
	CalcMillis(distanceMeters float64, flags graph.Flags) int64
}

const (
	speedShift = 8
	speedMask  = 0xff

	// DefaultSpeedKmh is assumed when no speed is encoded.
	DefaultSpeedKmh = 50
	MaxSpeedKmh     = speedMask
)

// CarFlags encodes direction and a speed in km/h into edge flags.
func CarFlags(speedKmh float64, forward, backward bool) graph.Flags {
	s := uint32(math.Round(min(max(speedKmh, 0), MaxSpeedKmh)))
	f := graph.Flags(s << speedShift)
	if forward {
		f |= graph.FlagForward
	}
	if backward {
		f |= graph.FlagBackward
	}
	return f
}

// SpeedKmh decodes the speed stored by CarFlags, DefaultSpeedKmh if none.
func SpeedKmh(f graph.Flags) float64 {
	s := (uint32(f) >> speedShift) & speedMask
	if s == 0 {
		return DefaultSpeedKmh
	}
	return float64(s)
}

func millis(distanceMeters, speedKmh float64) int64 {
	return int64(math.Round(distanceMeters / (speedKmh / 3.6) * 1000))
}

// ShortestWeighting uses distance as weight.
type ShortestWeighting struct{}

func (ShortestWeighting) Name() string { return "shortest" }

func (ShortestWeighting) CalcWeight(distanceMeters float64, _ graph.Flags) float64 {
	return distanceMeters
}

func (ShortestWeighting) RevertWeight(weight float64, _ graph.Flags) float64 {
	return weight
}

func (ShortestWeighting) CalcMillis(distanceMeters float64, f graph.Flags) int64 {
	return millis(distanceMeters, SpeedKmh(f))
}

// FastestWeighting uses travel time in seconds as weight.
type FastestWeighting struct{}

func (FastestWeighting) Name() string { return "fastest" }

func (FastestWeighting) CalcWeight(distanceMeters float64, f graph.Flags) float64 {
	return distanceMeters / (SpeedKmh(f) / 3.6)
}

func (FastestWeighting) RevertWeight(weight float64, f graph.Flags) float64 {
	return weight * (SpeedKmh(f) / 3.6)
}

func (FastestWeighting) CalcMillis(distanceMeters float64, f graph.Flags) int64 {
	return millis(distanceMeters, SpeedKmh(f))
}

// ByName returns the weighting registered under name.
func ByName(name string) (Weighting, error) {
	switch name {
	case "shortest":
		return ShortestWeighting{}, nil
	case "fastest", "":
		return FastestWeighting{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting %q", name)
	}
}
