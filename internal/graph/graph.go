// Package graph provides strong-component and layering algorithms over
// directed graphs described by a node list and a successor function.
package graph

import (
	"cmp"
	"slices"
)

type frame[K cmp.Ordered] struct {
	node K
	succ []K
	next int
}

// StrongComponents returns the strongly connected components of the graph
// spanned by nodes. Edges to keys outside nodes are ignored. Components are
// returned in reverse topological order: every component appears after all
// components it has edges into. Members of each component are sorted.
func StrongComponents[K cmp.Ordered](nodes []K, next func(K) []K) [][]K {
	inGraph := make(map[K]struct{}, len(nodes))
	for _, n := range nodes {
		inGraph[n] = struct{}{}
	}
	successors := func(k K) []K {
		var out []K
		for _, w := range next(k) {
			if _, ok := inGraph[w]; ok {
				out = append(out, w)
			}
		}
		return out
	}

	index := make(map[K]int, len(nodes))
	low := make(map[K]int, len(nodes))
	onStack := make(map[K]bool, len(nodes))
	var (
		stack   []K
		out     [][]K
		counter int
	)
	visit := func(v K) frame[K] {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		return frame[K]{node: v, succ: successors(v)}
	}

	for _, root := range nodes {
		if _, seen := index[root]; seen {
			continue
		}
		calls := []frame[K]{visit(root)}
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			if f.next < len(f.succ) {
				w := f.succ[f.next]
				f.next++
				if _, seen := index[w]; !seen {
					calls = append(calls, visit(w))
				} else if onStack[w] {
					low[f.node] = min(low[f.node], index[w])
				}
				continue
			}

			v := f.node
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].node
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}
			var comp []K
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			slices.Sort(comp)
			out = append(out, comp)
		}
	}
	return out
}

// Layers assigns every node of components a layer index. A component without
// edges into other components is on layer 0; any other component sits one
// layer above the highest component it depends on. components must be in the
// order returned by StrongComponents.
func Layers[K cmp.Ordered](components [][]K, next func(K) []K) map[K]int {
	owner := make(map[K]int)
	for ci, c := range components {
		for _, v := range c {
			owner[v] = ci
		}
	}

	layer := make(map[K]int, len(owner))
	for ci, c := range components {
		l := 0
		for _, v := range c {
			for _, w := range next(v) {
				wc, ok := owner[w]
				if !ok || wc == ci {
					continue
				}
				l = max(l, layer[w]+1)
			}
		}
		for _, v := range c {
			layer[v] = l
		}
	}
	return layer
}

// Cyclic reports whether a component forms a cycle. Self-loops are not
// recorded as dependencies, so only components with several members qualify.
func Cyclic[K cmp.Ordered](component []K) bool {
	return len(component) > 1
}
