package pipeline

import (
	"slices"
	"strings"

	"github.com/jonathan/lead-tracker/internal/types"
)

// Filter narrows the pipeline for display. The zero Filter matches every
// active lead.
type Filter struct {
	Search string
	Stages []types.Stage
}

// Match reports whether the lead passes the filter.
func (f Filter) Match(l types.Lead) bool {
	if l.IsArchived {
		return false
	}
	if len(f.Stages) > 0 && !slices.Contains(f.Stages, l.Stage()) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	haystack := []string{l.Title, l.Company, l.Notes}
	for _, c := range l.Contacts {
		haystack = append(haystack, c.Name, c.Email)
	}
	for _, s := range haystack {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// Apply returns the leads that pass the filter. The input is not modified.
func (f Filter) Apply(leads []types.Lead) []types.Lead {
	out := make([]types.Lead, 0, len(leads))
	for _, l := range leads {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// GroupByStage buckets leads by derived stage, preserving order. Every stage
// is present in the result.
func GroupByStage(leads []types.Lead) map[types.Stage][]types.Lead {
	buckets := make(map[types.Stage][]types.Lead, len(types.Stages))
	for _, st := range types.Stages {
		buckets[st] = []types.Lead{}
	}
	for _, l := range leads {
		if l.IsArchived {
			continue
		}
		st := l.Stage()
		buckets[st] = append(buckets[st], l)
	}
	return buckets
}
