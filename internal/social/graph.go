// Package social provides the tenant friendship graph and the contagion
// process that spreads cooperative membership by word of mouth.
package social

import "math/rand"

// Graph is a directed acquaintance multigraph over tenant ids. Edges are
// created once at initialization; duplicates are accepted for simplicity.
type Graph struct {
	adj [][]int
}

// NewGraph builds a graph over n tenants where each node gets a random
// out-degree in [0, friendLimit).
func NewGraph(n, friendLimit int, rng *rand.Rand) *Graph {
	g := &Graph{adj: make([][]int, n)}
	if n == 0 || friendLimit <= 0 {
		return g
	}
	for i := 0; i < n; i++ {
		for k := rng.Intn(friendLimit); k > 0; k-- {
			g.adj[i] = append(g.adj[i], rng.Intn(n))
		}
	}
	return g
}

// Friends returns the out-neighbors of a tenant, duplicates included.
func (g *Graph) Friends(id int) []int {
	return g.adj[id]
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.adj)
}

// Contagion spreads from start through the graph breadth-first. At each
// hop a not-yet-infected neighbor is infected only if two independent
// trials succeed: one for the pair encountering each other at all, one
// for transmission given an encounter. Expansion stops after maxDepth
// hops or when the frontier empties. The returned set excludes start
// unless an edge cycles back to it.
func (g *Graph) Contagion(start int, encounterP, transmitP float64, maxDepth int, rng *rand.Rand) map[int]struct{} {
	infected := make(map[int]struct{})
	fringe := []int{start}

	for depth := 0; depth < maxDepth && len(fringe) > 0; depth++ {
		var next []int
		for _, id := range fringe {
			for _, friend := range g.adj[id] {
				if _, ok := infected[friend]; ok {
					continue
				}
				rollEncounter := rng.Float64()
				rollTransmit := rng.Float64()
				if rollEncounter < encounterP && rollTransmit < transmitP {
					infected[friend] = struct{}{}
					next = append(next, friend)
				}
			}
		}
		fringe = next
	}
	return infected
}
