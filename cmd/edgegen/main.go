// Command edgegen generates a contact-graph edge list using one of the
// generators in the graph package, for later consumption via
// config.GraphConfig{Generator: "edge_list"}. Grounded on
// bin/contagion/main.go's flat flag.* CLI shape (one binary, a handful
// of flags, no subcommand framework).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/epiworld-go/epiworld/graph"
	"github.com/epiworld-go/epiworld/rng"
)

func main() {
	generator := flag.String("generator", "small_world", "graph generator (ring_lattice|small_world|bernoulli)")
	n := flag.Int("n", 1000, "number of nodes")
	k := flag.Int("k", 4, "ring-lattice/small-world degree")
	p := flag.Float64("p", 0.1, "small-world rewire probability / bernoulli edge probability")
	directed := flag.Bool("directed", false, "generate a directed graph")
	seed := flag.Int64("seed", time.Now().UTC().UnixNano(), "random seed")
	out := flag.String("out", "", "output edge-list path (required)")
	flag.Parse()

	if *out == "" {
		fmt.Println("-out was not specified")
		flag.Usage()
		os.Exit(2)
	}

	src := rng.New(*seed)
	var g *graph.AdjList
	var err error
	switch *generator {
	case "ring_lattice":
		g, err = graph.RingLattice(*n, *k, *directed)
	case "small_world":
		g, err = graph.SmallWorld(*n, *k, *p, *directed, src)
	case "bernoulli":
		g = graph.Bernoulli(*n, *p, *directed, src)
	default:
		log.Fatalf("%s is not a valid generator (ring_lattice|small_world|bernoulli)", *generator)
	}
	if err != nil {
		log.Fatalf("error building graph: %s", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("error creating %s: %s", *out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	fmt.Fprintln(w, "# source target")
	for i := 0; i < g.Size(); i++ {
		for _, j := range g.Neighbors(i) {
			if !g.IsDirected() && j < i {
				continue
			}
			fmt.Fprintf(w, "%d %d\n", i, j)
		}
	}
	log.Printf("wrote %s graph over %d nodes to %s\n", *generator, *n, *out)
}
