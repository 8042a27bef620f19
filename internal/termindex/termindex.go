// Package termindex implements the case-insensitive prefix index used by
// query expansion to find every ontology term that starts with a given
// input string.
package termindex

import (
	"sort"
	"strings"
)

type trieNode struct {
	children map[byte]*trieNode
	terms    []string // terms that end exactly at this node, lowercase
}

// Index is a trie over lowercase terms supporting prefix scans.
type Index struct {
	root *trieNode
	size int
}

// New builds an empty Index.
func New() *Index {
	return &Index{root: &trieNode{}}
}

// Build constructs an Index from a set of terms in one pass.
func Build(terms []string) *Index {
	idx := New()
	for _, t := range terms {
		idx.Insert(t)
	}
	return idx
}

// Insert adds term to the index. Safe to call with a term already present;
// inserting is idempotent.
func (idx *Index) Insert(term string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return
	}
	n := idx.root
	for i := 0; i < len(term); i++ {
		b := term[i]
		if n.children == nil {
			n.children = make(map[byte]*trieNode)
		}
		child, ok := n.children[b]
		if !ok {
			child = &trieNode{}
			n.children[b] = child
		}
		n = child
	}
	for _, existing := range n.terms {
		if existing == term {
			return
		}
	}
	n.terms = append(n.terms, term)
	idx.size++
}

// PrefixScan returns every indexed term that has prefix as a string
// prefix, sorted. An empty prefix matches nothing (query terms are never
// empty by the time they reach expansion; see internal/expansion).
func (idx *Index) PrefixScan(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	n := idx.root
	for i := 0; i < len(prefix); i++ {
		child, ok := n.children[prefix[i]]
		if !ok {
			return nil
		}
		n = child
	}
	var out []string
	collect(n, &out)
	sort.Strings(out)
	return out
}

// Contains reports whether term is present exactly (not just as a prefix).
func (idx *Index) Contains(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	n := idx.root
	for i := 0; i < len(term); i++ {
		child, ok := n.children[term[i]]
		if !ok {
			return false
		}
		n = child
	}
	for _, existing := range n.terms {
		if existing == term {
			return true
		}
	}
	return false
}

// Len returns the number of distinct terms inserted.
func (idx *Index) Len() int { return idx.size }

func collect(n *trieNode, out *[]string) {
	if n == nil {
		return
	}
	*out = append(*out, n.terms...)
	for _, child := range n.children {
		collect(child, out)
	}
}
