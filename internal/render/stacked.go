package render

import (
	"strings"

	"fleetrun/internal/result"
)

// renderStacked emits each group without framing: the wrapped, comma-joined
// names, a '-' rule, then every command's cleaned output verbatim. Groups are
// separated by a '=' rule (omitted before the first group).
func renderStacked(groups []result.ConsolidatedGroup, opts Options) string {
	var b strings.Builder

	for i, group := range groups {
		if i > 0 {
			b.WriteString(rep("=", opts.Width))
			b.WriteString("\n")
		}

		b.WriteString(strings.Join(wrapNames(group.Names, opts.Width), "\n"))
		b.WriteString("\n")
		b.WriteString(rep("-", opts.Width))
		b.WriteString("\n")

		for _, res := range group.Results {
			b.WriteString(res.Output)
			b.WriteString("\n")
		}
	}

	return b.String()
}
