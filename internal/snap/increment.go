package snap

import "snaptank/internal/template"

// NextIncrement computes the next unused increment for a new snapshot,
// given every existing snapshot path in the same family: one past the
// highest increment seen, or 1 when the family has none.
//
// Existing paths whose increment is missing or non-numeric are skipped
// rather than treated as errors — a stray hand-renamed snapshot must not
// block new ones.
func NextIncrement(snapshot *template.PathTemplate, existing []string) int {
	highest := 0
	for _, path := range existing {
		fields, err := snapshot.Fields(path)
		if err != nil {
			continue
		}
		n, ok := fields.Int("increment")
		if !ok {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
