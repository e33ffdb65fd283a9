package ch

import (
	"fmt"
	"slices"

	"github.com/azybler/ch_router/pkg/graph"
)

// Shortcut is a shortcut that contracting a node would add.
type Shortcut struct {
	From, To uint32
	Weight   float64
	Flags    graph.Flags // FlagForward, or FlagBoth when merged with its reverse
	Skipped1 graph.EdgeID
	Skipped2 graph.EdgeID

	// OriginalEdges is the number of original edges the shortcut stands for.
	OriginalEdges int
}

type pairKey struct{ from, to uint32 }

// findShortcuts computes the shortcuts needed to remove v without changing
// any distance between its uncontracted neighbors. The store is not
// modified. The returned slice is reused by the next call.
func (p *Preparation) findShortcuts(v uint32) ([]Shortcut, error) {
	p.candidates = p.candidates[:0]
	clear(p.candidateIndex)

	for in := range p.g.Edges(v, graph.InEdges) {
		u := in.Adj
		if u == v || p.g.Level(u) != 0 {
			continue
		}
		for out := range p.g.Edges(v, graph.OutEdges) {
			w := out.Adj
			if w == v || w == u || p.g.Level(w) != 0 {
				continue
			}
			weight := in.Weight + out.Weight
			if p.hasDirectEdge(u, w, weight) {
				continue
			}
			res, err := p.witness.Find(u, w, v, weight+p.cfg.WeightTolerance, p.cfg.WitnessVisitedLimit)
			if err != nil {
				return nil, fmt.Errorf("contract %d: %w", v, err)
			}
			if res.Status == WitnessFound {
				continue
			}
			p.addCandidate(Shortcut{
				From:          u,
				To:            w,
				Weight:        weight,
				Flags:         graph.FlagForward,
				Skipped1:      in.ID,
				Skipped2:      out.ID,
				OriginalEdges: p.origEdges[in.ID] + p.origEdges[out.ID],
			})
		}
	}
	return p.mergeCandidates(), nil
}

// hasDirectEdge reports whether an existing edge u->w is at least as good.
func (p *Preparation) hasDirectEdge(u, w uint32, weight float64) bool {
	for e := range p.g.Edges(u, graph.OutEdges) {
		if e.Adj == w && e.Weight <= weight+p.cfg.WeightTolerance {
			return true
		}
	}
	return false
}

// addCandidate keeps the cheapest candidate per (from, to).
func (p *Preparation) addCandidate(sc Shortcut) {
	k := pairKey{sc.From, sc.To}
	if i, ok := p.candidateIndex[k]; ok {
		if sc.Weight < p.candidates[i].Weight {
			p.candidates[i] = sc
		}
		return
	}
	p.candidateIndex[k] = len(p.candidates)
	p.candidates = append(p.candidates, sc)
}

// mergeCandidates folds u->w and w->u into one bidirectional shortcut when
// both have the same weight and skip the same two edges. Otherwise the
// reverse could be unpacked over an edge that only allows one direction.
func (p *Preparation) mergeCandidates() []Shortcut {
	p.consumed = slices.Grow(p.consumed[:0], len(p.candidates))[:len(p.candidates)]
	clear(p.consumed)

	out := p.merged[:0]
	for i, c := range p.candidates {
		if p.consumed[i] {
			continue
		}
		if j, ok := p.candidateIndex[pairKey{c.To, c.From}]; ok && !p.consumed[j] {
			r := p.candidates[j]
			if r.Weight == c.Weight && r.Skipped1 == c.Skipped2 && r.Skipped2 == c.Skipped1 {
				c.Flags = graph.FlagBoth
				p.consumed[j] = true
			}
		}
		out = append(out, c)
	}
	p.merged = out
	return out
}

// contract commits v with scs, the shortcuts found for it under the
// current levels, assigns the next level and refreshes the priorities of
// its uncontracted neighbors. scs may alias the findShortcuts scratch.
func (p *Preparation) contract(v uint32, scs []Shortcut) (int, error) {
	for _, sc := range scs {
		id, err := p.g.Shortcut(sc.From, sc.To).
			Weight(sc.Weight).
			Flags(sc.Flags).
			Skipped(sc.Skipped1, sc.Skipped2).
			Add()
		if err != nil {
			return 0, fmt.Errorf("contract %d: %w", v, err)
		}
		p.setOriginalEdges(id, sc.OriginalEdges)
	}
	added := len(scs)
	p.shortcuts += added

	p.level++
	p.g.SetLevel(v, p.level)

	p.neighbors = p.neighbors[:0]
	for e := range p.g.Edges(v, nil) {
		u := e.Adj
		if u == v || p.g.Level(u) != 0 || slices.Contains(p.neighbors, u) {
			continue
		}
		p.neighbors = append(p.neighbors, u)
	}
	for _, u := range p.neighbors {
		p.contractedNeighbors[u]++
		p.depth[u] = max(p.depth[u], p.depth[v]+1)
		prio, _, err := p.score(u)
		if err != nil {
			return 0, err
		}
		p.priority[u] = prio
		p.queue.update(u, prio)
	}
	return added, nil
}

func (p *Preparation) setOriginalEdges(id graph.EdgeID, n int) {
	for len(p.origEdges) <= int(id) {
		p.origEdges = append(p.origEdges, 1)
	}
	p.origEdges[id] = n
}

// calculatePriority scores v; lower contracts earlier. It also returns
// the shortcuts contracting v would add right now.
func (p *Preparation) calculatePriority(v uint32) (int, []Shortcut, error) {
	scs, err := p.findShortcuts(v)
	if err != nil {
		return 0, nil, err
	}
	degree := 0
	for e := range p.g.Edges(v, nil) {
		if e.Adj != v && p.g.Level(e.Adj) == 0 {
			degree++
		}
	}
	originalEdges := 0
	for _, sc := range scs {
		originalEdges += sc.OriginalEdges
	}
	edgeDifference := len(scs) - degree
	return 10*edgeDifference + originalEdges + p.contractedNeighbors[v] + p.depth[v], scs, nil
}
