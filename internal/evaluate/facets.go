package evaluate

// FacetLedger tracks which required facets of a question have been covered.
// Covered facets are always a subset of the required ones; marking an unknown
// facet is a no-op.
type FacetLedger struct {
	required []string
	covered  map[string]bool
}

func NewFacetLedger(required []string) *FacetLedger {
	ledger := &FacetLedger{
		required: append([]string(nil), required...),
		covered:  make(map[string]bool, len(required)),
	}
	return ledger
}

func (l *FacetLedger) Required() []string {
	return append([]string(nil), l.required...)
}

func (l *FacetLedger) MarkCovered(facet string) {
	for _, known := range l.required {
		if known == facet {
			l.covered[facet] = true
			return
		}
	}
}

// Covered returns the covered facets preserving the required declaration order.
func (l *FacetLedger) Covered() []string {
	result := make([]string, 0, len(l.covered))
	for _, facet := range l.required {
		if l.covered[facet] {
			result = append(result, facet)
		}
	}
	return result
}

// Missing returns required facets not yet covered, in declaration order.
func (l *FacetLedger) Missing() []string {
	result := make([]string, 0, len(l.required)-len(l.covered))
	for _, facet := range l.required {
		if !l.covered[facet] {
			result = append(result, facet)
		}
	}
	return result
}

// Score is |covered| / |required|, or 1.0 when nothing is required. An empty
// requirement set means there was no information to check, not mastery.
func (l *FacetLedger) Score() float64 {
	if len(l.required) == 0 {
		return 1.0
	}
	return float64(len(l.Covered())) / float64(len(l.required))
}
