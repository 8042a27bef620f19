// Package ontology holds the static semantic ontology used to expand search
// terms before they are matched against ingested log lines. The data itself
// is authored as YAML and compiled into the binary with go:embed, then
// parsed once at startup — there is no runtime mutation of the ontology.
package ontology

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/ontology.yaml
var embeddedYAML []byte

// PeerEdge names a related term and the forward edge weight to it. If
// ReverseWeight is nil, the implicit reverse edge uses
// forwardWeight * reverseWeightFactor (see internal/graph.Build).
type PeerEdge struct {
	Term          string   `yaml:"term"`
	Weight        float64  `yaml:"weight"`
	ReverseWeight *float64 `yaml:"reverse_weight,omitempty"`
}

// Cluster is everything the ontology knows about one seed term: its
// morphological variants, its synonyms, and its weighted relations to other
// clusters (domain peers, hypernyms, implications).
type Cluster struct {
	Seed           string     `yaml:"seed"`
	Family         string     `yaml:"family"`
	Morphological  []string   `yaml:"morphological"`
	Synonyms       []string   `yaml:"synonyms"`
	Peers          []PeerEdge `yaml:"peers"`
	Hypernyms      []PeerEdge `yaml:"hypernyms"`
	Implications   []PeerEdge `yaml:"implications"`
}

// Ontology is the full set of clusters plus the family names they belong
// to.
type Ontology struct {
	Families []string  `yaml:"families"`
	Clusters []Cluster `yaml:"clusters"`
}

// Load parses the embedded ontology. It never fails against the data this
// package ships with; the error return exists for callers that want to
// treat a corrupt embed as non-fatal rather than panicking at init.
func Load() (*Ontology, error) {
	var o Ontology
	if err := yaml.Unmarshal(embeddedYAML, &o); err != nil {
		return nil, fmt.Errorf("ontology: parse embedded data: %w", err)
	}
	return &o, nil
}

// MustLoad parses the embedded ontology and panics on failure. Used at
// package-level var initialization where there is no sensible recovery.
func MustLoad() *Ontology {
	o, err := Load()
	if err != nil {
		panic(err)
	}
	return o
}
