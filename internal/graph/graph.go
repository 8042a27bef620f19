// Package graph compiles the static ontology into a directed, weighted term
// graph. Construction is the only place edge weights and tie-breaks are
// decided; everything downstream (internal/expansion) just walks the
// result.
package graph

import (
	"sort"
	"strings"

	"github.com/feedtriage/triage/internal/ontology"
)

// RelationKind classifies an edge. The enum order is the tie-break
// priority: a lower value wins when two kinds connect the same ordered
// pair of terms with equal weight.
type RelationKind int

const (
	Morphological RelationKind = iota
	Synonym
	DomainPeer
	Hypernym
	Implication
)

func (k RelationKind) String() string {
	switch k {
	case Morphological:
		return "morphological"
	case Synonym:
		return "synonym"
	case DomainPeer:
		return "domain_peer"
	case Hypernym:
		return "hypernym"
	case Implication:
		return "implication"
	default:
		return "unknown"
	}
}

// reverseWeightFactor is applied to a peer/hypernym/implication edge's
// forward weight to derive its implicit reverse edge when the ontology
// doesn't specify one explicitly. It is calibrated against the lowest
// forward weight anywhere in the ontology (0.35, auth's peer edge to
// error) so that even the weakest implicit reverse edge still clears
// the greed-10 minimum-weight floor (0.25, see internal/expansion's
// tierFor): 0.35 * 0.75 = 0.2625. A lower factor would leave edges like
// auth->scope (weight 0.4, reverse 0.16) permanently unreachable in
// reverse, violating backwards resolvability.
const reverseWeightFactor = 0.75

// Edge is one outgoing relation from a Node.
type Edge struct {
	Kind   RelationKind
	To     string
	Weight float64
}

// Node is a single term and its outgoing edges, sorted by target term for
// deterministic traversal order.
type Node struct {
	Term string
	Out  []Edge
}

// Graph is the compiled term graph. It is immutable after Build.
type Graph struct {
	nodes map[string]*Node
}

// Build compiles an Ontology into a Graph. Every term mentioned anywhere in
// the ontology — as a seed, a morphological variant, a synonym, or a peer —
// becomes a node, even if it has no outgoing edges of its own.
func Build(o *ontology.Ontology) *Graph {
	g := &Graph{nodes: make(map[string]*Node)}
	for _, c := range o.Clusters {
		seed := norm(c.Seed)
		g.ensure(seed)

		for _, m := range c.Morphological {
			m := norm(m)
			g.addEdge(seed, Morphological, m, 1.0)
			g.addEdge(m, Morphological, seed, 1.0)
		}
		for _, s := range c.Synonyms {
			s := norm(s)
			g.addEdge(seed, Synonym, s, 0.9)
			g.addEdge(s, Synonym, seed, 0.9)
		}
		for _, p := range c.Peers {
			g.addAsymmetric(seed, DomainPeer, p)
		}
		for _, h := range c.Hypernyms {
			g.addAsymmetric(seed, Hypernym, h)
		}
		for _, im := range c.Implications {
			g.addAsymmetric(seed, Implication, im)
		}
	}
	for _, n := range g.nodes {
		sort.Slice(n.Out, func(i, j int) bool { return n.Out[i].To < n.Out[j].To })
	}
	return g
}

func (g *Graph) addAsymmetric(seed string, kind RelationKind, e ontology.PeerEdge) {
	term := norm(e.Term)
	g.addEdge(seed, kind, term, e.Weight)
	rw := e.Weight * reverseWeightFactor
	if e.ReverseWeight != nil {
		rw = *e.ReverseWeight
	}
	g.addEdge(term, kind, seed, rw)
}

func (g *Graph) ensure(term string) *Node {
	n, ok := g.nodes[term]
	if !ok {
		n = &Node{Term: term}
		g.nodes[term] = n
	}
	return n
}

// addEdge inserts or updates the from->to edge, applying the construction
// tie-break: when two relation kinds connect the same ordered pair, the
// higher-weight edge is kept; equal weights keep the higher-priority kind
// (Morphological > Synonym > DomainPeer > Hypernym > Implication).
func (g *Graph) addEdge(from string, kind RelationKind, to string, weight float64) {
	if from == to {
		return
	}
	n := g.ensure(from)
	g.ensure(to)
	for i, existing := range n.Out {
		if existing.To != to {
			continue
		}
		if weight > existing.Weight || (weight == existing.Weight && kind < existing.Kind) {
			n.Out[i] = Edge{Kind: kind, To: to, Weight: weight}
		}
		return
	}
	n.Out = append(n.Out, Edge{Kind: kind, To: to, Weight: weight})
}

// Node returns the node for term, if present.
func (g *Graph) Node(term string) (*Node, bool) {
	n, ok := g.nodes[norm(term)]
	return n, ok
}

// Terms returns every node's term, sorted, for building the prefix index.
func (g *Graph) Terms() []string {
	out := make([]string, 0, len(g.nodes))
	for t := range g.nodes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
