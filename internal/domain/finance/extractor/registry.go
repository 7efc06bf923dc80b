package extractor

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/webclinic017/serendipity/internal/domain/document"
)

// Registry is an ordered list of extractors. Earlier entries win.
type Registry struct {
	extractors []Extractor
}

// NewRegistry keeps extractors in the given priority order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Default returns every supported institution in priority order:
//
//  1. Chase (PDF statements)
//  2. Fidelity (PDF investment reports)
//  3. Fidelity positions (CSV downloads)
//  4. Merrill Edge holdings (CSV)
//  5. Merrill Edge transactions (CSV)
//  6. Merrill Edge realized gains (CSV)
//  7. Interactive Brokers (flex query CSV)
func Default() *Registry {
	return NewRegistry(
		NewChase(),
		NewFidelity(),
		NewFidelityPositions(),
		NewMerrillEdgeHoldings(),
		NewMerrillEdgeTransactions(),
		NewMerrillEdgeRealizedGains(),
		NewInteractiveBrokers(),
	)
}

// Find returns the first extractor, in registration order, that is either
// registered under name or accepts doc. An empty name leaves only the
// CanProcess check. ErrNoExtractor is returned when nothing matches; for an
// unknown name the error suggests the closest registered one.
func (r *Registry) Find(doc document.Document, name string) (Extractor, error) {
	for _, e := range r.extractors {
		if (name != "" && e.Institution() == name) || e.CanProcess(doc) {
			return e, nil
		}
	}

	if name == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoExtractor, doc.Path())
	}
	if suggestion := r.Suggest(name); suggestion != "" {
		return nil, fmt.Errorf("%w for institution %q (did you mean %q?)", ErrNoExtractor, name, suggestion)
	}
	return nil, fmt.Errorf("%w for institution %q", ErrNoExtractor, name)
}

// Names lists the distinct institution names in priority order.
func (r *Registry) Names() []string {
	seen := make(map[string]bool, len(r.extractors))
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		if !seen[e.Institution()] {
			seen[e.Institution()] = true
			names = append(names, e.Institution())
		}
	}
	return names
}

// Suggest returns the registered institution name closest to name, or "".
func (r *Registry) Suggest(name string) string {
	if name == "" {
		return ""
	}
	names := r.Names()

	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDistance := "", -1
	for _, candidate := range names {
		d := fuzzy.LevenshteinDistance(name, candidate)
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	if bestDistance > len(name)/2 {
		return ""
	}
	return best
}
