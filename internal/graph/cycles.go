package graph

import "sort"

// Cycle is an import loop. Files lists the loop in traversal order starting
// from the smallest path; the last file imports the first. Component holds
// every file of the strongly connected component the loop belongs to.
type Cycle struct {
	Files     []string `json:"files"`
	ArchIDs   []string `json:"arch_ids"`
	Component []string `json:"component"`
}

// Cycles finds strongly connected components with Tarjan's algorithm and
// reports one loop per component. Self-imports count as cycles.
func (g *Graph) Cycles() []Cycle {
	index := 0
	stack := make([]string, 0)
	onStack := make(map[string]bool)
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.nodes[v].Edges {
			w := e.To
			if _, known := g.nodes[w]; !known {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] && indices[w] < lowlinks[v] {
				lowlinks[v] = indices[w]
			}
		}

		if lowlinks[v] == indices[v] {
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
			if len(scc) > 1 || g.selfLoop(v) {
				sccs = append(sccs, scc)
			}
		}
	}

	for _, v := range g.paths {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	cycles := make([]Cycle, 0, len(sccs))
	for _, scc := range sccs {
		sort.Strings(scc)
		loop := g.shortestLoop(scc[0], scc)
		c := Cycle{Files: loop, Component: scc}
		seen := make(map[string]bool)
		for _, f := range loop {
			if id := g.nodes[f].ArchID; id != "" && !seen[id] {
				seen[id] = true
				c.ArchIDs = append(c.ArchIDs, id)
			}
		}
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Files[0] < cycles[j].Files[0] })
	return cycles
}

func (g *Graph) selfLoop(v string) bool {
	for _, e := range g.nodes[v].Edges {
		if e.To == v {
			return true
		}
	}
	return false
}

// shortestLoop runs a BFS from start inside the component and returns the
// path of the shortest way back to start.
func (g *Graph) shortestLoop(start string, component []string) []string {
	inSCC := make(map[string]bool, len(component))
	for _, f := range component {
		inSCC[f] = true
	}

	parent := map[string]string{}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.nodes[cur].Edges {
			if e.To == start {
				var loop []string
				for n := cur; n != start; n = parent[n] {
					loop = append(loop, n)
				}
				loop = append(loop, start)
				for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
					loop[i], loop[j] = loop[j], loop[i]
				}
				return loop
			}
			if inSCC[e.To] && !visited[e.To] {
				visited[e.To] = true
				parent[e.To] = cur
				queue = append(queue, e.To)
			}
		}
	}
	return component
}

// InCycle reports which files take part in any of the cycles.
func InCycle(cycles []Cycle) map[string][]Cycle {
	out := make(map[string][]Cycle)
	for _, c := range cycles {
		for _, f := range c.Files {
			out[f] = append(out[f], c)
		}
	}
	return out
}
