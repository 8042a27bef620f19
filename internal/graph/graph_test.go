package graph

import (
	"testing"

	"github.com/feedtriage/triage/internal/ontology"
)

func edgeTo(n *Node, to string) (Edge, bool) {
	for _, e := range n.Out {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

func TestMorphologicalEdgesAreSymmetricWeightOne(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)

	auth, ok := g.Node("auth")
	if !ok {
		t.Fatal("auth node missing")
	}
	e, ok := edgeTo(auth, "authenticated")
	if !ok || e.Kind != Morphological || e.Weight != 1.0 {
		t.Fatalf("auth->authenticated = %+v, %v", e, ok)
	}

	back, ok := g.Node("authenticated")
	if !ok {
		t.Fatal("authenticated node missing")
	}
	e2, ok := edgeTo(back, "auth")
	if !ok || e2.Kind != Morphological || e2.Weight != 1.0 {
		t.Fatalf("authenticated->auth = %+v, %v", e2, ok)
	}
}

func TestDomainPeerHasImplicitReverseAtConfiguredFactor(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)

	oauthNode, _ := g.Node("oauth")
	e, ok := edgeTo(oauthNode, "auth")
	if !ok {
		t.Fatal("oauth->auth reverse edge missing")
	}
	if e.Kind != DomainPeer {
		t.Fatalf("kind = %v, want DomainPeer", e.Kind)
	}
	want := 0.5 * reverseWeightFactor
	if e.Weight != want {
		t.Fatalf("reverse weight = %v, want %v", e.Weight, want)
	}
}

func TestExplicitReverseWeightOverridesDefault(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)

	expiry, _ := g.Node("expiry")
	e, ok := edgeTo(expiry, "auth")
	if !ok {
		t.Fatal("expiry->auth reverse edge missing")
	}
	if e.Weight != 0.3 {
		t.Fatalf("weight = %v, want explicit 0.3", e.Weight)
	}
}

func TestHypernymConnectsSpecificToGeneral(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)

	unauth, _ := g.Node("unauthorized")
	e, ok := edgeTo(unauth, "auth")
	if !ok || e.Kind != Hypernym {
		t.Fatalf("unauthorized->auth = %+v, %v, want Hypernym", e, ok)
	}
}

func TestImplicationConnectsCausalPair(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)

	panicNode, _ := g.Node("panic")
	e, ok := edgeTo(panicNode, "crash")
	if !ok || e.Kind != Implication {
		t.Fatalf("panic->crash = %+v, %v, want Implication", e, ok)
	}
}

func TestTieBreakKeepsHigherWeightRegardlessOfKind(t *testing.T) {
	g := Build(&ontology.Ontology{Clusters: []ontology.Cluster{
		{Seed: "a", Synonyms: []string{"b"}},
		{Seed: "a", Peers: []ontology.PeerEdge{{Term: "b", Weight: 0.95}}},
	}})
	a, _ := g.Node("a")
	e, ok := edgeTo(a, "b")
	if !ok || e.Weight != 0.95 || e.Kind != DomainPeer {
		t.Fatalf("a->b = %+v, %v, want weight 0.95 DomainPeer", e, ok)
	}
}

func TestTieBreakKeepsHigherPriorityKindOnEqualWeight(t *testing.T) {
	rw := 0.9
	g := Build(&ontology.Ontology{Clusters: []ontology.Cluster{
		{Seed: "a", Synonyms: []string{"b"}},
		{Seed: "a", Peers: []ontology.PeerEdge{{Term: "b", Weight: 0.9, ReverseWeight: &rw}}},
	}})
	a, _ := g.Node("a")
	e, ok := edgeTo(a, "b")
	if !ok || e.Kind != Synonym {
		t.Fatalf("a->b kind = %v, want Synonym (higher priority at equal weight)", e.Kind)
	}
}

func TestBuildIsCaseInsensitiveAndTrimmed(t *testing.T) {
	g := Build(&ontology.Ontology{Clusters: []ontology.Cluster{
		{Seed: " AUTH ", Morphological: []string{"Authenticated"}},
	}})
	n, ok := g.Node("auth")
	if !ok {
		t.Fatal("expected normalized node \"auth\"")
	}
	if _, ok := edgeTo(n, "authenticated"); !ok {
		t.Fatal("expected normalized edge target \"authenticated\"")
	}
}

func TestTermsAreSortedAndDeduplicated(t *testing.T) {
	o := ontology.MustLoad()
	g := Build(o)
	terms := g.Terms()
	seen := make(map[string]bool, len(terms))
	for i, term := range terms {
		if seen[term] {
			t.Fatalf("duplicate term %q", term)
		}
		seen[term] = true
		if i > 0 && terms[i-1] >= term {
			t.Fatalf("terms not sorted at index %d: %q >= %q", i, terms[i-1], term)
		}
	}
	if len(terms) < 100 {
		t.Fatalf("expected a sizeable ontology, got %d terms", len(terms))
	}
}
