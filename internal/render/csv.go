package render

import (
	"strings"

	"fleetrun/internal/result"
)

// renderCSV emits one row per (names, command, result) triple. Consolidated
// group names are space-joined into a single field. Fields are quoted only
// when they contain a space or the separator, interior empty lines are
// removed from multi-line results, and rows end with CRLF.
func renderCSV(groups []result.ConsolidatedGroup, opts Options) string {
	sep := opts.CSVChar

	var b strings.Builder
	b.WriteString("server" + sep + "command" + sep + "result\r\n")

	for _, group := range groups {
		names := strings.Join(group.Names, " ")
		for _, res := range group.Results {
			value := strings.Join(NoEmpties(strings.Split(res.Output, "\n")), "\n")
			b.WriteString(csvField(names, sep))
			b.WriteString(sep)
			b.WriteString(csvField(res.Command, sep))
			b.WriteString(sep)
			b.WriteString(csvField(value, sep))
			b.WriteString("\r\n")
		}
	}

	return b.String()
}

// csvField quotes a field iff it contains a space or the separator.
func csvField(field, sep string) string {
	if strings.Contains(field, " ") || strings.Contains(field, sep) {
		return `"` + field + `"`
	}
	return field
}
