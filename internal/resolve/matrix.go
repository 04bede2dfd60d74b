package resolve

import "github.com/openinspect/kestrel/internal/domain"

// ResolvePriority scans the priority matrix in file order and returns the
// first rule whose present when-keys all equal the resolved dimensions;
// absent keys are wildcards. With no match the profile's own priority is
// the bucket. Hard overrides are already merged into the profile's
// safety/urgency/liability by the dimension resolver, so forced escalation
// flows through the same scan.
func ResolvePriority(p domain.Profile, rules []domain.MatrixRule) string {
	for _, r := range rules {
		if matrixMatches(r.When, p) {
			return r.Then
		}
	}
	return p.Priority
}

func matrixMatches(w domain.MatrixWhen, p domain.Profile) bool {
	if w.Safety != "" && w.Safety != p.Safety {
		return false
	}
	if w.Urgency != "" && w.Urgency != p.Urgency {
		return false
	}
	if w.Liability != "" && w.Liability != p.Liability {
		return false
	}
	return true
}
