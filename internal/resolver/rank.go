// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package resolver

import (
	"math"
	"sort"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const (
	defaultDamping   = 0.85
	defaultMaxIter   = 100
	defaultTolerance = 1e-6
)

// Edge is a dependency edge between two items: From depends on To.
type Edge struct {
	From types.ItemID
	To   types.ItemID
}

// Graph is the item dependency graph with edges resolved to stored items.
type Graph struct {
	Nodes []types.ItemID
	Edges []Edge
}

// RankConfig configures PageRank computation.
type RankConfig struct {
	Damping       float64 // Damping factor (default 0.85)
	MaxIterations int     // Maximum iterations (default 100)
	Tolerance     float64 // Convergence tolerance (default 1e-6)
}

// BuildGraph resolves the dependencies of items to item IDs. Edges whose
// target cannot be found in the store are left out, as are self-edges.
// Resolution here is structural only; readiness is not consulted.
func (r *Resolver) BuildGraph(items []types.Item) *Graph {
	g := &Graph{}
	for _, it := range items {
		g.Nodes = append(g.Nodes, it.ID)
		for _, dep := range it.Deps {
			to, ok := r.lookup(dep)
			if !ok || to == it.ID {
				continue
			}
			g.Edges = append(g.Edges, Edge{From: it.ID, To: to})
		}
	}
	return g
}

// lookup finds the stored item a reference names, trying the declared kind
// first and then the other kinds in the same file.
func (r *Resolver) lookup(dep types.DepRef) (types.ItemID, bool) {
	file, name, ok := types.SplitQualifiedName(dep.QualifiedName)
	if !ok {
		return types.ItemID{}, false
	}
	if it, found := r.items.Lookup(file, dep.Kind, name); found {
		return it.ID, true
	}
	for _, it := range r.items.InFile(file) {
		if it.ID.Name == name || baseName(it.ID.Name) == name {
			return it.ID, true
		}
	}
	return types.ItemID{}, false
}

// PageRank scores every node of g. Rank flows along dependency edges, so
// items that many others depend on, directly or transitively, score high.
func PageRank(g *Graph, cfg RankConfig) map[types.ItemID]float64 {
	damping := cfg.Damping
	if damping == 0 {
		damping = defaultDamping
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = defaultMaxIter
	}
	tolerance := cfg.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}

	n := len(g.Nodes)
	if n == 0 {
		return nil
	}

	idx := make(map[types.ItemID]int, n)
	for i, node := range g.Nodes {
		idx[node] = i
	}

	outEdges := make([][]int, n)
	for _, e := range g.Edges {
		from, okF := idx[e.From]
		to, okT := idx[e.To]
		if !okF || !okT {
			continue
		}
		outEdges[from] = append(outEdges[from], to)
	}

	uniform := 1.0 / float64(n)
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = uniform
	}

	newRank := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		for i := range newRank {
			newRank[i] = (1.0 - damping) * uniform
		}

		for i := 0; i < n; i++ {
			if len(outEdges[i]) == 0 {
				// Dangling node: spread its rank evenly.
				for j := range newRank {
					newRank[j] += damping * rank[i] * uniform
				}
				continue
			}
			share := rank[i] / float64(len(outEdges[i]))
			for _, to := range outEdges[i] {
				newRank[to] += damping * share
			}
		}

		diff := 0.0
		for i := range rank {
			diff += math.Abs(newRank[i] - rank[i])
		}
		copy(rank, newRank)
		if diff < tolerance {
			break
		}
	}

	scores := make(map[types.ItemID]float64, n)
	for i, node := range g.Nodes {
		scores[node] = rank[i]
	}
	return scores
}

// Rank orders items so that items the whole store depends on heavily come
// first. Ties are broken by file, kind, then name. The input slice is not
// modified.
func (r *Resolver) Rank(items []types.Item) []types.Item {
	scores := PageRank(r.BuildGraph(r.items.Items()), RankConfig{})

	out := make([]types.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i].ID], scores[out[j].ID]
		if math.Abs(si-sj) > 1e-12 {
			return si > sj
		}
		a, b := out[i].ID, out[j].ID
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
	return out
}
