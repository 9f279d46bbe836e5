package watch

import (
	"fmt"
	"sort"
)

// Plan describes what a regeneration cycle will do. Cycles always rebuild
// the full document; the structural diff only informs logging.
type Plan struct {
	Full    bool
	Added   []string
	Removed []string
}

// Summary returns a short human-readable description of the plan.
func (p Plan) Summary() string {
	switch {
	case len(p.Added) > 0 && len(p.Removed) > 0:
		return fmt.Sprintf("%d file(s) added, %d removed, full regeneration", len(p.Added), len(p.Removed))
	case len(p.Added) > 0:
		return fmt.Sprintf("%d file(s) added, full regeneration", len(p.Added))
	case len(p.Removed) > 0:
		return fmt.Sprintf("%d file(s) removed, full regeneration", len(p.Removed))
	default:
		return "content change, full regeneration"
	}
}

// PlanChanges diffs the previous file set against the current enumeration.
// When smartDiff is off the structural diff is skipped entirely.
func PlanChanges(prev map[string]struct{}, curr []string, smartDiff bool) Plan {
	plan := Plan{Full: true}
	if !smartDiff {
		return plan
	}

	currSet := make(map[string]struct{}, len(curr))
	for _, f := range curr {
		currSet[f] = struct{}{}
		if _, ok := prev[f]; !ok {
			plan.Added = append(plan.Added, f)
		}
	}
	for f := range prev {
		if _, ok := currSet[f]; !ok {
			plan.Removed = append(plan.Removed, f)
		}
	}

	sort.Strings(plan.Added)
	sort.Strings(plan.Removed)
	return plan
}
