package store

import "github.com/feedtriage/triage/internal/model"

// Filter is a conjunction of constraints over an entry. A nil or zero-value
// axis means "do not constrain on that axis".
type Filter struct {
	// Producers restricts to these producer identifiers. Empty means any.
	Producers map[string]struct{}
	// Levels restricts to these severities. Empty means any.
	Levels map[model.Level]struct{}
	// FieldKey/FieldValue, when FieldKey is non-empty, require an exact
	// match on entry.Fields[FieldKey] == FieldValue.
	FieldKey   string
	FieldValue string
}

// Match reports whether entry satisfies every constrained axis of f.
func (f Filter) Match(e model.LogEntry) bool {
	if len(f.Producers) > 0 {
		if _, ok := f.Producers[e.Producer]; !ok {
			return false
		}
	}
	if len(f.Levels) > 0 {
		if _, ok := f.Levels[e.Level]; !ok {
			return false
		}
	}
	if f.FieldKey != "" {
		v, ok := e.Fields.Get(f.FieldKey)
		if !ok || v != f.FieldValue {
			return false
		}
	}
	return true
}

// And returns a filter that matches only entries matching both f and g.
// Producer/level sets intersect; a non-empty field constraint on either side
// wins (g's constraint takes precedence when both specify one, since g is
// typically the caller-supplied query-time constraint layered on top of a
// tab's base filter f).
func (f Filter) And(g Filter) Filter {
	out := Filter{FieldKey: f.FieldKey, FieldValue: f.FieldValue}
	out.Producers = intersectOrCopy(f.Producers, g.Producers)
	out.Levels = intersectLevelsOrCopy(f.Levels, g.Levels)
	if g.FieldKey != "" {
		out.FieldKey = g.FieldKey
		out.FieldValue = g.FieldValue
	}
	return out
}

func intersectOrCopy(a, b map[string]struct{}) map[string]struct{} {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil
	case len(a) == 0:
		return cloneSet(b)
	case len(b) == 0:
		return cloneSet(a)
	default:
		out := make(map[string]struct{})
		for k := range a {
			if _, ok := b[k]; ok {
				out[k] = struct{}{}
			}
		}
		return out
	}
}

func cloneSet(a map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a))
	for k := range a {
		out[k] = struct{}{}
	}
	return out
}

func intersectLevelsOrCopy(a, b map[model.Level]struct{}) map[model.Level]struct{} {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil
	case len(a) == 0:
		return cloneLevelSet(b)
	case len(b) == 0:
		return cloneLevelSet(a)
	default:
		out := make(map[model.Level]struct{})
		for k := range a {
			if _, ok := b[k]; ok {
				out[k] = struct{}{}
			}
		}
		return out
	}
}

func cloneLevelSet(a map[model.Level]struct{}) map[model.Level]struct{} {
	out := make(map[model.Level]struct{}, len(a))
	for k := range a {
		out[k] = struct{}{}
	}
	return out
}

// ProducerSet builds a Producers set from a list of producer names.
func ProducerSet(names ...string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// LevelSet builds a Levels set from a list of levels.
func LevelSet(levels ...model.Level) map[model.Level]struct{} {
	if len(levels) == 0 {
		return nil
	}
	out := make(map[model.Level]struct{}, len(levels))
	for _, l := range levels {
		out[l] = struct{}{}
	}
	return out
}
