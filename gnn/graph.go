package gnn

import "fmt"

// Graph is a sparse edge-list description of an undirected graph.
// Node indices are 0-based in [0, NumNodes). The edge list may contain
// duplicates and symmetric pairs; the adjacency builder absorbs both.
type Graph struct {
	NumNodes int
	Edges    [][2]int
}

// Validate checks every edge endpoint lies in [0, NumNodes).
// Out-of-range endpoints are a fatal input error, not something to clamp.
func (g Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("graph with %d nodes: %w", g.NumNodes, ErrDegenerateInput)
	}
	for _, e := range g.Edges {
		if e[0] < 0 || e[0] >= g.NumNodes || e[1] < 0 || e[1] >= g.NumNodes {
			return fmt.Errorf("edge (%d,%d) outside [0,%d): %w", e[0], e[1], g.NumNodes, ErrIndexOutOfRange)
		}
	}
	return nil
}

// Degrees returns the per-node neighbor count, counting each undirected
// neighbor once regardless of how often (or in which direction) it appears
// in the edge list. Self-loops count once.
func (g Graph) Degrees() []int {
	seen := make(map[[2]int]bool, len(g.Edges))
	deg := make([]int, g.NumNodes)
	for _, e := range g.Edges {
		u, v := e[0], e[1]
		if u > v {
			u, v = v, u
		}
		key := [2]int{u, v}
		if seen[key] {
			continue
		}
		seen[key] = true
		deg[u]++
		if u != v {
			deg[v]++
		}
	}
	return deg
}
