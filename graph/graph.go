// Package graph builds and rewires the static contact structure consumed
// by the core (spec.md S4.2). An AdjList holds per-node neighbor lists in
// insertion order, matching the iteration-order guarantee in spec.md S5
// ("Iteration over each agent's neighbor list is in insertion order").
package graph

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/epiworld-go/epiworld/rng"
)

// AdjList is a static contact graph: an ordered neighbor list per node.
type AdjList struct {
	directed  bool
	neighbors [][]int
}

// NewAdjList creates an empty graph over n nodes.
func NewAdjList(n int, directed bool) *AdjList {
	return &AdjList{directed: directed, neighbors: make([][]int, n)}
}

// Size returns the number of nodes.
func (g *AdjList) Size() int { return len(g.neighbors) }

// IsDirected reports whether edges in this graph are one-directional.
func (g *AdjList) IsDirected() bool { return g.directed }

// Neighbors returns node i's neighbor list in insertion order. The
// returned slice must not be mutated by the caller.
func (g *AdjList) Neighbors(i int) []int { return g.neighbors[i] }

// Degree returns len(Neighbors(i)).
func (g *AdjList) Degree(i int) int { return len(g.neighbors[i]) }

// Clone returns a deep copy: an independent backing array per node's
// neighbor list, so rewiring one copy (graph.Rewire mutates its
// []int slices in place) never touches the other. Required whenever a
// graph crosses a goroutine boundary, e.g. Model.Clone for parallel
// replicates (spec.md S5: "no shared mutable state crosses thread
// boundaries").
func (g *AdjList) Clone() *AdjList {
	clone := &AdjList{directed: g.directed, neighbors: make([][]int, len(g.neighbors))}
	for i, nbrs := range g.neighbors {
		clone.neighbors[i] = append([]int(nil), nbrs...)
	}
	return clone
}

// AddEdge appends a one-way edge a->b. When the graph is undirected it
// also appends the reciprocal edge b->a, matching the teacher's
// AddWeightedBiConnection semantics but preserving insertion order on
// both sides.
func (g *AdjList) AddEdge(a, b int) error {
	if a < 0 || a >= g.Size() || b < 0 || b >= g.Size() {
		return errors.Wrapf(ErrInvalidGraph, "edge (%d,%d) endpoint outside [0,%d)", a, b, g.Size())
	}
	g.neighbors[a] = append(g.neighbors[a], b)
	if !g.directed && a != b {
		g.neighbors[b] = append(g.neighbors[b], a)
	}
	return nil
}

// ErrInvalidGraph is returned for malformed edges or disconnected graphs
// passed to Rewire. It mirrors epiworld.ErrInvalidGraph without creating
// an import cycle back into the root package.
var ErrInvalidGraph = errors.New("invalid graph")

// RingLattice builds an undirected (or directed) ring lattice, wrapping
// around, matching rgraph_ring_lattice in
// original_source/include/epiworld/randgraph.hpp. When directed, node i
// is connected to the next k nodes going forward; when undirected and
// k > 1, to the next k/2 nodes, so every node has k neighbors (k-1 when
// k is odd).
func RingLattice(n, k int, directed bool) (*AdjList, error) {
	if k > n-1 {
		return nil, errors.Wrapf(ErrInvalidGraph, "k (%d) can be at most n-1 (%d)", k, n-1)
	}
	step := k
	if !directed && k > 1 {
		step = k / 2
	}
	g := NewAdjList(n, directed)
	for i := 0; i < n; i++ {
		for j := 1; j <= step; j++ {
			l := i + j
			if l >= n {
				l -= n
			}
			if err := g.AddEdge(i, l); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// SmallWorld builds a Watts-Strogatz small-world graph: a ring lattice of
// degree k rewired with probability p, matching rgraph_smallworld.
func SmallWorld(n, k int, p float64, directed bool, src *rng.Source) (*AdjList, error) {
	g, err := RingLattice(n, k, directed)
	if err != nil {
		return nil, err
	}
	if k > 0 {
		if err := Rewire(g, src, p); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Bernoulli builds an Erdos-Renyi graph where every ordered (or
// unordered, if undirected) pair connects independently with probability
// p, matching rgraph_bernoulli.
func Bernoulli(n int, p float64, directed bool, src *rng.Source) *AdjList {
	g := NewAdjList(n, directed)
	for a := 0; a < n; a++ {
		start := 0
		if !directed {
			start = a + 1
		}
		for b := start; b < n; b++ {
			if a == b {
				continue
			}
			if src.Uniform() < p {
				g.AddEdge(a, b)
			}
		}
	}
	return g
}

// Rewire performs a degree-preserving edge-swap pass (spec.md S4.2):
// endpoints are chosen weighted by degree, and their selected neighbor
// slots are swapped, which holds every node's degree fixed exactly.
// Proportion p of the graph's edges are swapped. Fails with
// ErrInvalidGraph if the graph is fully disconnected.
func Rewire(g *AdjList, src *rng.Source, proportion float64) error {
	if proportion < 0 {
		return errors.Wrapf(ErrInvalidGraph, "rewire proportion %f is negative", proportion)
	}
	var nonIsolates []int
	var weights []float64
	var nedges float64
	for i := 0; i < g.Size(); i++ {
		d := len(g.neighbors[i])
		if d > 0 {
			nonIsolates = append(nonIsolates, i)
			weights = append(weights, float64(d))
			nedges += float64(d)
		}
	}
	if len(nonIsolates) == 0 {
		return errors.Wrap(ErrInvalidGraph, "the graph is completely disconnected")
	}
	// Cumulative distribution over nonIsolates, weighted by degree.
	weights[0] /= nedges
	for i := 1; i < len(weights); i++ {
		weights[i] = weights[i-1] + weights[i]/nedges
	}

	pickWeighted := func() int {
		u := src.Uniform()
		for i, w := range weights {
			if u <= w {
				return i
			}
		}
		return len(weights) - 1
	}

	divisor := 1.0
	if !g.directed {
		divisor = 2.0
	}
	nrewires := int(proportion * nedges / divisor)
	for ; nrewires > 0; nrewires-- {
		id0 := pickWeighted()
		id1 := pickWeighted()
		if id1 == id0 {
			id1++
			if id1 >= len(nonIsolates) {
				id1 = 0
			}
		}
		p0, p1 := nonIsolates[id0], nonIsolates[id1]
		if len(g.neighbors[p0]) == 0 || len(g.neighbors[p1]) == 0 {
			continue
		}
		slot0 := src.Intn(len(g.neighbors[p0]))
		slot1 := src.Intn(len(g.neighbors[p1]))
		alter0 := g.neighbors[p0][slot0]
		alter1 := g.neighbors[p1][slot1]
		if !g.directed {
			// Flip the reciprocal entries on the far side first.
			fixBackEdge(g, p0, alter0, p1)
			fixBackEdge(g, p1, alter1, p0)
		}
		g.neighbors[p0][slot0] = alter1
		g.neighbors[p1][slot1] = alter0
	}
	return nil
}

// fixBackEdge rewrites the entry pointing at "from" inside "to"'s
// neighbor list so it points at "newTarget" instead, preserving the
// symmetric back-index invariant (A1) for undirected graphs.
func fixBackEdge(g *AdjList, from, to, newTarget int) {
	for i, n := range g.neighbors[to] {
		if n == from {
			g.neighbors[to][i] = newTarget
			return
		}
	}
}

// LoadEdgeList parses a whitespace-separated edge list (spec.md S6):
// integer id pairs, one per line, optionally preceded by a header line
// and with '#'-prefixed comment lines ignored, matching the teacher's
// LoadAdjacencyMatrix parser.
func LoadEdgeList(path string, n int, directed bool) (*AdjList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open edge list %s", path)
	}
	defer f.Close()

	g := NewAdjList(n, directed)
	re := regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s*$`)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			if lineNum == 1 {
				continue // tolerate a non-numeric header row
			}
			return nil, errors.Wrapf(ErrInvalidGraph, "malformed edge on line %d: %q", lineNum, line)
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if err := g.AddEdge(a, b); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error scanning edge list")
	}
	return g, nil
}

// DegreeHistogram returns the count of nodes at each degree, used by the
// debug invariant in spec.md S4.2 ("post-rewire degree histogram equals
// pre-rewire").
func DegreeHistogram(g *AdjList) map[int]int {
	h := make(map[int]int)
	for i := 0; i < g.Size(); i++ {
		h[g.Degree(i)]++
	}
	return h
}

// String renders the graph for debugging as "a -> [b c d]" lines.
func (g *AdjList) String() string {
	var b strings.Builder
	for i, nbrs := range g.neighbors {
		fmt.Fprintf(&b, "%d -> %v\n", i, nbrs)
	}
	return b.String()
}
