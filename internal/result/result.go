// Package result defines the fleetrun result data model and the exact-match
// consolidation of per-host results.
package result

// CommandResult pairs a command with its cleaned, redacted output text.
type CommandResult struct {
	Command string
	Output  string
}

// HostResult holds one target's ordered command results. Results appear in
// the order the commands were submitted. A HostResult is immutable once the
// scheduler has produced it.
type HostResult struct {
	Name    string
	Results []CommandResult
}

// ConsolidatedGroup is the post-grouping shape: the set of target names whose
// full command output sequences are byte-identical. Names keep first-seen
// insertion order.
type ConsolidatedGroup struct {
	Names   []string
	Results []CommandResult
}

// Equal reports whether two result sequences are deeply equal. Equality is
// exact: any difference in command text or output text, including whitespace,
// separates two hosts.
func Equal(a, b []CommandResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Consolidate groups hosts with identical result sequences. Hosts are scanned
// in input order; a host joins the first existing group whose results match
// exactly, otherwise it starts a new group. Group order and membership order
// are both first-seen, so consolidation of the same input is deterministic.
//
// Group count is expected to be small relative to host count (most of a fleet
// agrees), so the linear scan per host is acceptable.
func Consolidate(results []HostResult) []ConsolidatedGroup {
	groups := make([]ConsolidatedGroup, 0, len(results))

	for _, host := range results {
		matched := false
		for i := range groups {
			if Equal(groups[i].Results, host.Results) {
				groups[i].Names = append(groups[i].Names, host.Name)
				matched = true
				break
			}
		}
		if !matched {
			groups = append(groups, ConsolidatedGroup{
				Names:   []string{host.Name},
				Results: host.Results,
			})
		}
	}

	return groups
}
