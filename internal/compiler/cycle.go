package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cdrgen/internal/idl"
)

// dependencyGraph maps a declared type to the declared types it holds by
// value.
type dependencyGraph map[string][]string

// analyzeRecursion reports every group of types that contain each other by
// value without a sequence or optional member in between. Such types have
// no finite encoding.
//
// The algorithm:
//  1. Build the by-value dependency graph, following typedefs and arrays
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop, once, on the member of
//     the SCC declared first
func analyzeRecursion(c *Context) []error {
	types := c.Types()
	graph := buildDependencyGraph(types)

	var errs []error
	for _, scc := range tarjanSCC(c.order, graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		first := firstDeclared(c.order, scc)
		path := reconstructCyclePath(first, scc, graph)
		errs = append(errs, &TypeError{
			Code:    ErrRecursiveByValue,
			Type:    first,
			Message: fmt.Sprintf("type contains itself by value: %s", strings.Join(path, " -> ")),
			Pos:     c.types[first].Pos,
		})
	}
	return errs
}

func buildDependencyGraph(types []*idl.TypeNode) dependencyGraph {
	graph := make(dependencyGraph, len(types))
	for _, n := range types {
		edges := []string{}
		switch n.Kind {
		case idl.KindStruct:
			for _, m := range n.Members {
				if !m.Optional() {
					edges = append(edges, valueTargets(m.Type)...)
				}
			}
		case idl.KindUnion:
			for _, uc := range n.Cases {
				edges = append(edges, valueTargets(uc.Type)...)
			}
		case idl.KindAlias:
			edges = append(edges, valueTargets(n.Elem)...)
		}
		graph[n.Name] = edges
	}
	return graph
}

// valueTargets returns the declared type a member type holds by value, if
// any. Sequences break the chain.
func valueTargets(t *idl.TypeNode) []string {
	for t != nil {
		switch t.Kind {
		case idl.KindRef:
			if t.Target != nil {
				return []string{t.Target.Name}
			}
			return nil
		case idl.KindArray:
			t = t.Elem
		default:
			return nil
		}
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so results are deterministic.
func tarjanSCC(order []string, graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func firstDeclared(order, scc []string) string {
	in := make(map[string]bool, len(scc))
	for _, n := range scc {
		in[n] = true
	}
	for _, n := range order {
		if in[n] {
			return n
		}
	}
	return scc[0]
}

// reconstructCyclePath follows edges inside the SCC from start until it
// returns to start.
func reconstructCyclePath(start string, scc []string, graph dependencyGraph) []string {
	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if neighbor == start {
				next = neighbor
				break
			}
			if next == "" && sccSet[neighbor] && !visited[neighbor] {
				next = neighbor
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
