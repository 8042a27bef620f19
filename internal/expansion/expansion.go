// Package expansion implements greed-gated term expansion: turning one
// query term into a weighted set of related terms, using the ontology
// graph and prefix index, with a "greed" dial (0-10) controlling how far
// and how loosely the expansion travels.
//
// Greed is gated on two independent axes that both relax monotonically as
// greed increases: a minimum edge weight and a maximum traversal depth.
// A third axis, which relation kinds are eligible for traversal at all,
// also widens monotonically with greed — this is what makes a
// high-weight domain-peer edge (e.g. weight 0.8) invisible at greed 4 but
// visible at greed 5, even though 0.8 clears greed 4's weight threshold:
// DomainPeer edges simply aren't eligible for traversal until greed 5.
// See DESIGN.md for why kind-eligibility, not weight alone, gates tiers.
package expansion

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/feedtriage/triage/internal/graph"
	"github.com/feedtriage/triage/internal/termindex"
)

// MaxGreed is the highest accepted greed value.
const MaxGreed = 10

// negativePrefixes bias expansion toward the error/failure families: a
// query term beginning with one of these is very likely describing a
// negative outcome even when the ontology has no direct edge from it to
// the error vocabulary.
var negativePrefixes = []string{"un", "fail", "err", "invalid", "no"}

// negativeBiasSeeds are the cluster seeds activated when a negative prefix
// is detected.
var negativeBiasSeeds = []string{"error", "failure"}

// negativeBiasBoost is added to an edge's weight, for threshold comparison
// only, when the edge originates from a negative-bias seed during a
// negative-prefix-biased expansion. It never changes the recorded score.
const negativeBiasBoost = 0.15

// tier describes the traversal rules in force at a greed level.
type tier struct {
	minWeight float64
	maxDepth  int
	kinds     map[graph.RelationKind]bool
}

func kindSet(kinds ...graph.RelationKind) map[graph.RelationKind]bool {
	m := make(map[graph.RelationKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// tierFor returns the traversal rules for greed g (1-10). Both minWeight
// (non-increasing) and maxDepth (non-decreasing) relax monotonically, and
// the kind set at each tier is a superset of the previous tier's — this is
// what guarantees expand(term, g-1) is always a subset of expand(term, g).
func tierFor(g int) tier {
	switch {
	case g <= 2:
		return tier{minWeight: 0.95, maxDepth: 1, kinds: kindSet(graph.Morphological)}
	case g <= 4:
		return tier{minWeight: 0.75, maxDepth: 1, kinds: kindSet(graph.Morphological, graph.Synonym)}
	case g <= 6:
		return tier{minWeight: 0.55, maxDepth: 1, kinds: kindSet(graph.Morphological, graph.Synonym, graph.DomainPeer, graph.Hypernym)}
	case g <= 8:
		return tier{minWeight: 0.40, maxDepth: 2, kinds: kindSet(graph.Morphological, graph.Synonym, graph.DomainPeer, graph.Hypernym, graph.Implication)}
	default:
		return tier{minWeight: 0.25, maxDepth: 3, kinds: kindSet(graph.Morphological, graph.Synonym, graph.DomainPeer, graph.Hypernym, graph.Implication)}
	}
}

// expandCacheSize bounds the number of (term, greed) expansions kept in
// memory. Query traffic tends to repeat the same handful of terms at the
// same greed within a session, so a modest LRU avoids re-walking the
// graph on every call without growing unbounded.
const expandCacheSize = 4096

// Expander holds the compiled graph and prefix index used to expand
// terms. Both are built once at startup and are read-only thereafter, so
// an Expander is safe for concurrent use. The expansion cache is also
// safe for concurrent use, guarded internally by the lru package.
type Expander struct {
	graph *graph.Graph
	index *termindex.Index
	cache *lru.Cache[string, map[string]float64]
}

// New builds an Expander from a compiled graph. The prefix index is
// derived from the graph's term set.
func New(g *graph.Graph) *Expander {
	cache, err := lru.New[string, map[string]float64](expandCacheSize)
	if err != nil {
		panic(err)
	}
	return &Expander{graph: g, index: termindex.Build(g.Terms()), cache: cache}
}

// Expand returns every term reachable from term at greed g, mapped to its
// best (maximum) score. An empty input term always yields an empty result.
// A greed of 0 disables expansion entirely: the result is just the input
// term itself, lowercased, at score 1.0.
func (x *Expander) Expand(term string, g int) map[string]float64 {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return map[string]float64{}
	}
	if g < 0 {
		g = 0
	}
	if g > MaxGreed {
		g = MaxGreed
	}
	if g == 0 {
		return map[string]float64{term: 1.0}
	}

	key := term + "\x00" + strconv.Itoa(g)
	if cached, ok := x.cache.Get(key); ok {
		return snapshotKeys(cached)
	}

	result := map[string]float64{term: 1.0}
	for _, hit := range x.index.PrefixScan(term) {
		result[hit] = 1.0
	}

	biased := hasNegativePrefix(term)
	t := tierFor(g)

	type frontierNode struct {
		term  string
		depth int
	}
	queue := []frontierNode{{term: term, depth: 0}}
	visitedAtDepth := map[string]int{term: 0}
	if biased {
		for _, seed := range negativeBiasSeeds {
			if _, ok := x.graph.Node(seed); !ok {
				continue
			}
			if cur, ok := result[seed]; !ok || cur < 1.0 {
				result[seed] = 1.0
			}
			if _, seen := visitedAtDepth[seed]; !seen {
				visitedAtDepth[seed] = 0
				queue = append(queue, frontierNode{term: seed, depth: 0})
			}
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= t.maxDepth {
			continue
		}
		node, ok := x.graph.Node(cur.term)
		if !ok {
			continue
		}
		boosted := biased && isNegativeBiasSeed(cur.term)
		for _, e := range node.Out {
			if !t.kinds[e.Kind] {
				continue
			}
			effective := e.Weight
			if boosted {
				effective += negativeBiasBoost
				if effective > 1.0 {
					effective = 1.0
				}
			}
			if effective < t.minWeight {
				continue
			}
			score := scoreOf(result, cur.term) * e.Weight
			if score > result[e.To] {
				result[e.To] = score
			}
			nextDepth := cur.depth + 1
			if prev, seen := visitedAtDepth[e.To]; !seen || nextDepth < prev {
				visitedAtDepth[e.To] = nextDepth
				queue = append(queue, frontierNode{term: e.To, depth: nextDepth})
			}
		}
	}

	x.closeMorphological(result)
	x.cache.Add(key, snapshotKeys(result))
	return result
}

func scoreOf(result map[string]float64, term string) float64 {
	if s, ok := result[term]; ok {
		return s
	}
	return 1.0
}

// closeMorphological implements the "morphological expansion is free"
// rule: every reached term's morphological neighbors are included
// regardless of the depth/weight gate that applied to reach it. Since
// morphological edges are weight 1.0 both ways, this never changes a
// term's own score; it only grows the reached set, to a fixed point.
func (x *Expander) closeMorphological(result map[string]float64) {
	for {
		added := false
		for term, score := range snapshotKeys(result) {
			node, ok := x.graph.Node(term)
			if !ok {
				continue
			}
			for _, e := range node.Out {
				if e.Kind != graph.Morphological {
					continue
				}
				if _, ok := result[e.To]; !ok {
					result[e.To] = score
					added = true
				}
			}
		}
		if !added {
			return
		}
	}
}

func snapshotKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func hasNegativePrefix(term string) bool {
	for _, p := range negativePrefixes {
		if len(term) > len(p) && strings.HasPrefix(term, p) {
			return true
		}
	}
	return false
}

func isNegativeBiasSeed(term string) bool {
	for _, s := range negativeBiasSeeds {
		if s == term {
			return true
		}
	}
	return false
}
