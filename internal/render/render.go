package render

import (
	"strings"
	"unicode/utf8"

	"fleetrun/internal/result"
)

// Mode selects the output layout.
type Mode int

const (
	ModeTable Mode = iota
	ModeCSV
	ModeStacked
)

// Options is the immutable per-run render configuration.
type Options struct {
	Mode     Mode
	Style    int    // table character set, 0-3
	Width    int    // total output width; 0 falls back to defaultWidth
	JumpHost string // jump host label for the table header, empty when unused
	CSVChar  string // CSV field separator
}

const defaultWidth = 80

// minimum width of the server column
const minLeftLen = 6

// charSet holds the twelve glyphs a table style needs.
type charSet struct {
	topLeft, top, topRight, topDown    string
	sideLeft, side, middle, sideRight  string
	botLeft, bot, botRight, botUp      string
}

// Styles 0-3: single-line, ASCII, double-line, rounded.
var charSets = [4]charSet{
	{"┌", "─", "┐", "┬", "├", "│", "┼", "┤", "└", "─", "┘", "┴"},
	{"*", "-", "*", "+", "*", "|", "+", "*", "*", "-", "*", "+"},
	{"╔", "═", "╗", "╦", "╠", "║", "╬", "╣", "╚", "═", "╝", "╩"},
	{"╭", "─", "╮", "┬", "├", "│", "┼", "┤", "╰", "─", "╯", "┴"},
}

// Render consolidates results and lays them out according to opts, returning
// the full output text. Redaction has already happened at capture time; the
// renderer only arranges the (already cleaned) result text.
func Render(results []result.HostResult, opts Options) string {
	groups := result.Consolidate(results)
	return RenderGroups(groups, opts)
}

// RenderGroups lays out pre-consolidated groups according to opts.
func RenderGroups(groups []result.ConsolidatedGroup, opts Options) string {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Style < 0 || opts.Style > 3 {
		opts.Style = 0
	}
	if opts.CSVChar == "" {
		opts.CSVChar = ","
	}

	switch opts.Mode {
	case ModeCSV:
		return renderCSV(groups, opts)
	case ModeStacked:
		return renderStacked(groups, opts)
	default:
		return renderTable(groups, opts)
	}
}

// leftLen computes the server column width: at least minLeftLen, wide enough
// for the longest single name once the comma-joined group membership wraps at
// every name boundary.
func leftLen(groups []result.ConsolidatedGroup) int {
	width := minLeftLen
	for _, group := range groups {
		for _, name := range group.Names {
			if n := utf8.RuneCountInString(name); n > width {
				width = n
			}
		}
	}
	return width
}

// wrapNames joins names with ", " and wraps the joined text so no line
// exceeds width.
func wrapNames(names []string, width int) []string {
	var lines []string
	var line []string
	used := 0

	for _, name := range names {
		n := utf8.RuneCountInString(name)
		// the separator costs two characters per joined name
		if len(line) > 0 && used+n+2 > width {
			lines = append(lines, strings.Join(line, ", "))
			line = nil
			used = 0
		}
		line = append(line, name)
		used += n + 2
	}

	if len(line) > 0 {
		lines = append(lines, strings.Join(line, ", "))
	}
	return lines
}

// pad returns s padded with spaces to width display runes. Text wider than
// the budget is passed through unchanged.
func pad(s string, width int) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
