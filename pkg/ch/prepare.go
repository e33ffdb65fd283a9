// Package ch builds a contraction hierarchy on a graph.Graph in place.
package ch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/graph"
)

var (
	// ErrNoProgress means the lazy priority updates never settled.
	ErrNoProgress = errors.New("contraction made no progress")
	// ErrAlreadyPrepared means the graph already carries levels.
	ErrAlreadyPrepared = errors.New("graph already has contraction levels")
)

// Config tunes preprocessing.
type Config struct {
	// WitnessVisitedLimit caps the nodes one witness search may expand.
	WitnessVisitedLimit int
	// WeightTolerance is added to the shortcut weight when looking for a witness.
	WeightTolerance float64
	// LogInterval logs progress every that many contractions; 0 adapts to
	// the remaining node count.
	LogInterval int
	// MaxStaleReinserts is the slack on top of the queue size allowed for
	// consecutive lazy reinserts before giving up.
	MaxStaleReinserts int
}

// DefaultConfig returns defaults suited to road networks.
func DefaultConfig() Config {
	return Config{
		WitnessVisitedLimit: 100,
		WeightTolerance:     1e-6,
		MaxStaleReinserts:   1000,
	}
}

// Preparation owns all mutable state of one contraction run over one graph.
// It is not safe for concurrent use; separate graphs may be prepared in
// parallel with separate Preparations.
type Preparation struct {
	g   *graph.Graph
	cfg Config
	log *zap.Logger

	witness *WitnessSearch
	queue   *nodeQueue
	score   func(uint32) (int, []Shortcut, error)

	priority            []int
	contractedNeighbors []int
	depth               []int
	origEdges           []int // by EdgeID
	level               int32
	shortcuts           int
	initialized         bool
	prepared            bool

	// Scratch reused across findShortcuts calls.
	candidates     []Shortcut
	candidateIndex map[pairKey]int
	consumed       []bool
	merged         []Shortcut
	neighbors      []uint32
}

// NewPreparation sets up a contraction run. The graph's node set must not
// grow afterwards.
func NewPreparation(g *graph.Graph, cfg Config, log *zap.Logger) *Preparation {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.WitnessVisitedLimit <= 0 {
		cfg.WitnessVisitedLimit = def.WitnessVisitedLimit
	}
	if cfg.WeightTolerance < 0 {
		cfg.WeightTolerance = 0
	}
	if cfg.MaxStaleReinserts <= 0 {
		cfg.MaxStaleReinserts = def.MaxStaleReinserts
	}

	n := g.NumNodes()
	p := &Preparation{
		g:                   g,
		cfg:                 cfg,
		log:                 log,
		witness:             NewWitnessSearch(g),
		queue:               newNodeQueue(n),
		priority:            make([]int, n),
		contractedNeighbors: make([]int, n),
		depth:               make([]int, n),
		origEdges:           make([]int, g.NumEdges()),
		candidateIndex:      make(map[pairKey]int),
	}
	p.score = p.calculatePriority
	for id := range graph.EdgeID(g.NumEdges()) {
		e := g.Edge(id)
		if e.Shortcut {
			p.origEdges[id] = p.origEdges[e.Skipped1] + p.origEdges[e.Skipped2]
		} else {
			p.origEdges[id] = 1
		}
	}
	return p
}

// DryRunShortcuts returns the shortcuts contracting node would add given the
// current levels, without modifying the graph.
func (p *Preparation) DryRunShortcuts(node uint32) ([]Shortcut, error) {
	if !p.g.HasNode(node) {
		return nil, fmt.Errorf("%w: %d", graph.ErrNodeOutOfRange, node)
	}
	scs, err := p.findShortcuts(node)
	if err != nil {
		return nil, err
	}
	return slices.Clone(scs), nil
}

// InitPriorities scores every node without contracting anything.
func (p *Preparation) InitPriorities() error {
	if p.initialized {
		return nil
	}
	for n := range uint32(p.g.NumNodes()) {
		if p.g.Level(n) != 0 {
			return fmt.Errorf("%w: node %d has level %d", ErrAlreadyPrepared, n, p.g.Level(n))
		}
	}
	for n := range uint32(p.g.NumNodes()) {
		prio, _, err := p.score(n)
		if err != nil {
			return err
		}
		p.priority[n] = prio
	}
	p.queue.init(p.priority, func(uint32) bool { return true })
	p.initialized = true
	return nil
}

// Priority returns the last computed priority of node.
func (p *Preparation) Priority(node uint32) int {
	return p.priority[node]
}

// ShortcutCount returns the number of shortcuts added by Prepare so far.
func (p *Preparation) ShortcutCount() int {
	return p.shortcuts
}

// Prepare contracts every node in priority order. On return every node has
// a distinct level in 1..NumNodes.
func (p *Preparation) Prepare(ctx context.Context) error {
	if p.prepared {
		return ErrAlreadyPrepared
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.InitPriorities(); err != nil {
		return err
	}

	n := p.g.NumNodes()
	origEdges := p.g.NumEdges()
	start := time.Now()
	p.log.Info("starting contraction",
		zap.Int("nodes", n),
		zap.Int("edges", origEdges),
		zap.Int("witness_visited_limit", p.cfg.WitnessVisitedLimit))

	stale, contracted := 0, 0
	for p.queue.Len() > 0 {
		node, queued := p.queue.pop()

		prio, scs, err := p.score(node)
		if err != nil {
			return err
		}
		if prio != queued {
			// Nothing changes between stale pops, so with a deterministic
			// score each node is reinserted at most once before a match.
			stale++
			if stale > p.queue.Len()+1+p.cfg.MaxStaleReinserts {
				return fmt.Errorf("%w: %d reinserts in a row at node %d", ErrNoProgress, stale, node)
			}
			p.priority[node] = prio
			p.queue.push(node, prio)
			continue
		}
		stale = 0

		if _, err := p.contract(node, scs); err != nil {
			return err
		}
		contracted++

		if contracted%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("contraction interrupted after %d nodes: %w", contracted, err)
			}
		}
		if interval := p.logInterval(n - contracted); contracted%interval == 0 {
			p.log.Info("contraction progress",
				zap.Int("contracted", contracted),
				zap.Int("nodes", n),
				zap.Int("shortcuts", p.shortcuts),
				zap.Duration("elapsed", time.Since(start)))
		}
	}

	p.prepared = true
	ratio := 0.0
	if origEdges > 0 {
		ratio = float64(p.shortcuts) / float64(origEdges)
	}
	p.log.Info("contraction complete",
		zap.Int("nodes", n),
		zap.Int("shortcuts", p.shortcuts),
		zap.Float64("shortcut_ratio", ratio),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// logInterval logs more often near the end, where nodes get expensive.
func (p *Preparation) logInterval(remaining int) int {
	if p.cfg.LogInterval > 0 {
		return p.cfg.LogInterval
	}
	switch {
	case remaining < 1000:
		return 100
	case remaining < 10000:
		return 1000
	case remaining < 100000:
		return 10000
	default:
		return 50000
	}
}
