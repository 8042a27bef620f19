package model

// Fields is an insertion-ordered string-to-string mapping. Log fields keep
// the order they were parsed in so the TUI and exporters can display them
// the way the source line presented them.
type Fields struct {
	keys []string
	vals map[string]string
}

// NewFields returns an empty Fields ready to append to.
func NewFields() Fields {
	return Fields{vals: make(map[string]string)}
}

// Set inserts or updates key. New keys are appended to the end; updating an
// existing key keeps its original position.
func (f *Fields) Set(key, value string) {
	if f.vals == nil {
		f.vals = make(map[string]string)
	}
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = value
}

// Get returns the value for key and whether it was present.
func (f Fields) Get(key string) (string, bool) {
	v, ok := f.vals[key]
	return v, ok
}

// Len returns the number of fields.
func (f Fields) Len() int { return len(f.keys) }

// Keys returns the field names in insertion order. Callers must not mutate
// the returned slice.
func (f Fields) Keys() []string { return f.keys }

// Each calls fn for every field in insertion order.
func (f Fields) Each(fn func(key, value string)) {
	for _, k := range f.keys {
		fn(k, f.vals[k])
	}
}

// Clone returns an independent copy of f.
func (f Fields) Clone() Fields {
	if len(f.keys) == 0 {
		return NewFields()
	}
	out := Fields{
		keys: append([]string(nil), f.keys...),
		vals: make(map[string]string, len(f.vals)),
	}
	for k, v := range f.vals {
		out.vals[k] = v
	}
	return out
}
