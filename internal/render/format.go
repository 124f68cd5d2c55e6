// Package render turns consolidated host results into table, CSV, or stacked
// text, with secret redaction and encoding-fallback output.
package render

import (
	"regexp"
	"strings"

	"fleetrun/internal/result"
)

// longCommandLen is the threshold above which a command may wrap into its own
// captured output; echoFragmentLen sized slices of it are searched for.
const (
	longCommandLen  = 60
	echoFragmentLen = 30
)

var (
	ansiColors  = regexp.MustCompile("\033\\[[0-9;]+m")
	ansiCursor  = regexp.MustCompile("\033\\[[0-9;]+G")
	ansiResets  = regexp.MustCompile("\033\\[m\x0f")
	leadingWS   = regexp.MustCompile(`^\s+`)
	trailingEOL = "\r\n"
)

// FormatOutput cleans a command's raw output for display: every line is run
// through FormatLine, empty lines are dropped, and lines containing echoed
// fragments of a long command are removed. Redaction happens here, before
// consolidation, so equal outputs stay equal after secrets are masked.
func FormatOutput(output, command string, secrets []string) string {
	var results []string
	for _, line := range strings.Split(output, "\n") {
		line = FormatLine(line, secrets)
		if line != "" && !commandInLine(command, line) {
			results = append(results, line)
		}
	}
	return strings.Join(results, "\n")
}

// FormatLine strips line endings, carriage returns, ANSI colour and cursor
// escapes, and leading whitespace, then masks every configured secret with an
// equal-length run of '*'.
func FormatLine(line string, secrets []string) string {
	line = strings.TrimRight(line, trailingEOL)
	line = strings.ReplaceAll(line, "\r", "")
	line = ansiColors.ReplaceAllString(line, "")
	line = ansiCursor.ReplaceAllString(line, "")
	line = ansiResets.ReplaceAllString(line, "")
	line = leadingWS.ReplaceAllString(line, "")

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		line = strings.ReplaceAll(line, secret, strings.Repeat("*", len(secret)))
	}

	return line
}

// commandInLine checks whether a long command has wrapped into the captured
// output by searching the line for contiguous slices of the command text.
func commandInLine(command, line string) bool {
	if len(command) < longCommandLen {
		return false
	}

	for i := 0; i < len(command); i += echoFragmentLen {
		end := i + echoFragmentLen
		if end > len(command) {
			end = len(command)
		}
		if strings.Contains(line, command[i:end]) {
			return true
		}
	}
	return false
}

// NoEmpties splits text into lines, trims each, and drops the empty ones.
func NoEmpties(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// resultLines flattens a group's command outputs into display lines.
func resultLines(results []result.CommandResult) []string {
	var lines []string
	for _, res := range results {
		lines = append(lines, NoEmpties(strings.Split(res.Output, "\n"))...)
	}
	return lines
}
