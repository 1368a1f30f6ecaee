package counter

// Filter restricts which message-type labels are counted. It holds two
// explicit sets: exact tokens (method names and full status codes) and
// single-digit status-class tokens. A nil or empty Filter accepts all.
type Filter struct {
	exact   map[string]bool
	classes map[string]bool
}

// NewFilter builds a Filter from a flat token list. Single-digit tokens
// ("4", "5", "6") become class filters, everything else is matched exactly.
func NewFilter(tokens []string) *Filter {
	f := &Filter{
		exact:   make(map[string]bool),
		classes: make(map[string]bool),
	}
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if len(t) == 1 && t[0] >= '1' && t[0] <= '6' {
			f.classes[t] = true
		} else {
			f.exact[t] = true
		}
	}
	return f
}

// Empty reports whether the filter has no tokens and therefore accepts all.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.exact) == 0 && len(f.classes) == 0)
}

// Accepts reports whether the label may be counted. Response labels also
// match when their class digit is a configured class token; method labels
// match exact tokens only.
func (f *Filter) Accepts(label string) bool {
	if label == "" {
		return false
	}
	if f.Empty() {
		return true
	}
	if f.exact[label] {
		return true
	}
	if label[0] >= '1' && label[0] <= '6' {
		return f.classes[label[:1]]
	}
	return false
}
