// Package query implements the search pipeline: parse the query text,
// expand each bare term through the semantic ontology, scan the store for
// matches, and rank the results by density and recency.
package query

import (
	"sort"
	"strings"

	"github.com/feedtriage/triage/internal/expansion"
	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/store"
)

// DefaultAlpha and DefaultBeta are the ranking weights used when the
// caller doesn't override them (see the core's rank_alpha/rank_beta
// configuration options).
const (
	DefaultAlpha = 1.0
	DefaultBeta  = 0.25
)

// Result is one ranked match.
type Result struct {
	Seq   uint64
	Score float64
}

// Engine runs the query pipeline against a Store using a shared Expander.
type Engine struct {
	store        *store.Store
	expander     *expansion.Expander
	defaultGreed int
	alpha, beta  float64
}

// New builds an Engine. defaultGreed is used when a query carries no
// greed:<N> token and the caller passes no override.
func New(s *store.Store, x *expansion.Expander, defaultGreed int, alpha, beta float64) *Engine {
	if alpha == 0 && beta == 0 {
		alpha, beta = DefaultAlpha, DefaultBeta
	}
	return &Engine{store: s, expander: x, defaultGreed: defaultGreed, alpha: alpha, beta: beta}
}

// Query runs text against scope (a view's base filter) and returns
// matches ranked highest score first, ties broken by higher seq first.
// greedOverride, if non-nil, wins over both the query's own greed:<N>
// token and the Engine's default.
func (e *Engine) Query(text string, greedOverride *int, scope store.Filter) ([]Result, error) {
	parsed, err := Parse(text)
	if err != nil {
		return nil, err
	}

	greed := e.defaultGreed
	if parsed.Greed != nil {
		greed = *parsed.Greed
	}
	if greedOverride != nil {
		greed = *greedOverride
	}
	if greed < 0 {
		greed = 0
	}
	if greed > expansion.MaxGreed {
		greed = expansion.MaxGreed
	}

	tokenSets := make([][]string, len(parsed.Terms))
	for i, t := range parsed.Terms {
		expanded := e.expander.Expand(t, greed)
		terms := make([]string, 0, len(expanded))
		for term := range expanded {
			terms = append(terms, term)
		}
		tokenSets[i] = terms
	}

	minSeq, nextSeq := e.store.Bounds()
	var maxSeq uint64
	if nextSeq > 0 {
		maxSeq = nextSeq - 1
	}

	var results []Result
	e.store.Range(minSeq, nextSeq, scope, func(entry model.LogEntry) bool {
		if !matchFieldConstraints(entry, parsed.FieldConstraints) {
			return true
		}
		matched := map[string]bool{}
		for _, terms := range tokenSets {
			if !matchAnyTerm(entry, terms, matched) {
				return true
			}
		}
		density := float64(len(matched)) / (1 + float64(len(entry.Message))/1024.0)
		var recency float64
		if maxSeq > minSeq {
			recency = float64(entry.Seq-minSeq) / float64(maxSeq-minSeq)
		}
		score := e.alpha*density + e.beta*recency
		results = append(results, Result{Seq: entry.Seq, Score: score})
		return true
	})

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Seq > results[j].Seq
	})
	return results, nil
}

// matchAnyTerm reports whether any of terms appears as a case-insensitive
// substring of entry's message or any field value, recording every term
// that does into matched (for density's distinct-term count across all
// tokens of the query).
func matchAnyTerm(entry model.LogEntry, terms []string, matched map[string]bool) bool {
	any := false
	for _, term := range terms {
		if containsFold(entry.Message, term) {
			matched[term] = true
			any = true
			continue
		}
		entry.Fields.Each(func(_, value string) {
			if containsFold(value, term) {
				matched[term] = true
				any = true
			}
		})
	}
	return any
}

func matchFieldConstraints(entry model.LogEntry, constraints []FieldConstraint) bool {
	for _, c := range constraints {
		v, ok := entry.Fields.Get(c.Key)
		if !ok || !strings.EqualFold(v, c.Value) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
