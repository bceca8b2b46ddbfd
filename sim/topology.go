// sim/topology.go
package sim

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Topology is a device's qubit connectivity: a mutable undirected graph plus
// a free/busy coloring. Reservations remove the edges that cross the
// reserved boundary; releases restore static edges whose endpoints are both
// free again. The static edge list never changes.
//
// Node iteration order everywhere is the static declaration order (and
// neighbor order is ascending id), so allocation decisions are deterministic
// for a fixed random sequence.
type Topology struct {
	g      *simple.UndirectedGraph
	order  []int64
	static [][2]int64
	busy   map[int64]bool
}

// NewTopology builds a topology from a static edge list. Node order is
// first-appearance order in the edge list.
func NewTopology(edges [][2]int64) *Topology {
	t := &Topology{
		g:      simple.NewUndirectedGraph(),
		static: make([][2]int64, len(edges)),
		busy:   make(map[int64]bool),
	}
	copy(t.static, edges)
	seen := make(map[int64]bool)
	for _, e := range edges {
		for _, id := range e {
			if !seen[id] {
				seen[id] = true
				t.order = append(t.order, id)
				t.g.AddNode(simple.Node(id))
			}
		}
	}
	for _, e := range edges {
		t.g.SetEdge(t.g.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}
	return t
}

// NumQubits returns the number of physical qubits.
func (t *Topology) NumQubits() int { return len(t.order) }

// FreeCount returns how many qubits are currently free.
func (t *Topology) FreeCount() int {
	n := 0
	for _, id := range t.order {
		if !t.busy[id] {
			n++
		}
	}
	return n
}

// Busy reports whether the qubit is reserved.
func (t *Topology) Busy(id int64) bool { return t.busy[id] }

// HasEdge reports whether the live graph currently connects u and v.
func (t *Topology) HasEdge(u, v int64) bool { return t.g.HasEdgeBetween(u, v) }

// EdgeCount returns the number of edges in the live graph.
func (t *Topology) EdgeCount() int { return t.g.Edges().Len() }

// neighbors returns the live-graph neighbors of id in ascending order.
func (t *Topology) neighbors(id int64) []int64 {
	nodes := graph.NodesOf(t.g.From(id))
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Allocator finds, reserves and releases connected qubit subsets. One
// allocator is shared by every device in the cloud: release restores edges
// based on the current global coloring, which is only sound while all graph
// mutations for all devices happen under this one critical section.
type Allocator struct {
	mu sync.Mutex
}

// NewAllocator creates the shared allocation critical section.
func NewAllocator() *Allocator { return &Allocator{} }

// Select scans free qubits in declaration order and, from each candidate
// start, walks the whole live graph breadth-first, greedily collecting free
// qubits it encounters until the set reaches size n. It returns the first
// set of exactly n qubits, or nil if no start yields one.
//
// The walk traverses busy qubits, so the returned set is reachable through
// the graph but not guaranteed pairwise connected among itself. That is the
// intended heuristic; callers must not assume a connected subgraph.
func (a *Allocator) Select(t *Topology, n int) []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return t.selectLocked(n)
}

func (t *Topology) selectLocked(n int) []int64 {
	if n <= 0 {
		return nil
	}
	var candidates []int64
	for _, id := range t.order {
		if !t.busy[id] {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) < n {
		return nil
	}
	for _, start := range candidates {
		if picked := t.growFrom(start, n); picked != nil {
			return picked
		}
	}
	return nil
}

// growFrom runs one BFS over the entire graph from start, adding free
// qubits to the result in visit order.
func (t *Topology) growFrom(start int64, n int) []int64 {
	picked := []int64{start}
	inSet := map[int64]bool{start: true}
	visited := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 && len(picked) < n {
		u := queue[0]
		queue = queue[1:]
		for _, v := range t.neighbors(u) {
			if visited[v] {
				continue
			}
			visited[v] = true
			queue = append(queue, v)
			if len(picked) < n && !t.busy[v] && !inSet[v] {
				inSet[v] = true
				picked = append(picked, v)
			}
		}
	}
	if len(picked) != n {
		return nil
	}
	return picked
}

// Reserve colors nodes busy and disconnects them from every neighbor outside
// the set. Edges strictly inside the set are kept.
func (a *Allocator) Reserve(t *Topology, nodes []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	inSet := make(map[int64]bool, len(nodes))
	for _, id := range nodes {
		inSet[id] = true
		t.busy[id] = true
	}
	for _, id := range nodes {
		for _, v := range t.neighbors(id) {
			if !inSet[v] {
				t.g.RemoveEdge(id, v)
			}
		}
	}
}

// Release colors nodes free and re-adds every static edge whose endpoints
// are both currently free, not only the edges removed by the matching
// reservation. Interleaved reservations may therefore restore edges on
// behalf of one another once both sides are free.
func (a *Allocator) Release(t *Topology, nodes []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range nodes {
		t.busy[id] = false
	}
	for _, e := range t.static {
		if !t.busy[e[0]] && !t.busy[e[1]] {
			t.g.SetEdge(t.g.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
		}
	}
}
