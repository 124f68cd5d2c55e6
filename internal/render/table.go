package render

import (
	"strings"
	"unicode/utf8"

	"fleetrun/internal/result"
)

// renderTable draws the framed two-column (or three-column with a jump host)
// layout. Each group is separated by a horizontal divider and prints one row
// per name or result line, whichever is longer; missing cells are blanks so
// every row keeps full-width framing.
func renderTable(groups []result.ConsolidatedGroup, opts Options) string {
	chars := charSets[opts.Style]
	left := leftLen(groups)
	width := opts.Width

	var b strings.Builder
	writeTableHeader(&b, chars, left, width, opts.JumpHost)

	for i, group := range groups {
		writeTableDivider(&b, chars, left, width, opts.JumpHost, i == 0)
		writeTableGroup(&b, chars, group, left, width)
	}

	// bottom frame collapses the name/result split with an up junction
	b.WriteString(chars.botLeft)
	b.WriteString(rep(chars.bot, left+2))
	b.WriteString(chars.botUp)
	b.WriteString(rep(chars.bot, width-left-5))
	b.WriteString(chars.botRight)
	b.WriteString("\n")

	return b.String()
}

// writeTableHeader emits the top frame and the column title row. With a jump
// host the top frame splits three ways and the title row gains a labelled
// jumpbox column.
func writeTableHeader(b *strings.Builder, chars charSet, left, width int, jump string) {
	if jump != "" {
		jumpLen := utf8.RuneCountInString(jump)

		b.WriteString(chars.topLeft)
		b.WriteString(rep(chars.top, left+2))
		b.WriteString(chars.topDown)
		b.WriteString(rep(chars.top, width-left-17-jumpLen))
		b.WriteString(chars.topDown)
		b.WriteString(rep(chars.top, jumpLen+11))
		b.WriteString(chars.topRight)
		b.WriteString("\n")

		b.WriteString(chars.side + " Server" + rep(" ", left-6) + " ")
		b.WriteString(chars.side + " Result" + rep(" ", width-left-25-jumpLen) + " ")
		b.WriteString(chars.side + " Jumpbox: " + jump + " " + chars.side)
		b.WriteString("\n")
		return
	}

	b.WriteString(chars.topLeft)
	b.WriteString(rep(chars.top, left+2))
	b.WriteString(chars.topDown)
	b.WriteString(rep(chars.top, width-left-5))
	b.WriteString(chars.topRight)
	b.WriteString("\n")

	b.WriteString(chars.side + " Server" + rep(" ", left-6) + " ")
	b.WriteString(chars.side + " Result" + rep(" ", width-left-13) + " ")
	b.WriteString(chars.side)
	b.WriteString("\n")
}

// writeTableDivider emits a horizontal rule before a group. The very first
// divider under a jump-host header carries an extra up junction where the
// header's third column collapses back into two.
func writeTableDivider(b *strings.Builder, chars charSet, left, width int, jump string, first bool) {
	if first && jump != "" {
		jumpLen := utf8.RuneCountInString(jump)

		b.WriteString(chars.sideLeft)
		b.WriteString(rep(chars.top, left+2))
		b.WriteString(chars.middle)
		b.WriteString(rep(chars.top, width-left-17-jumpLen))
		b.WriteString(chars.botUp)
		b.WriteString(rep(chars.top, jumpLen+11))
		b.WriteString(chars.sideRight)
		b.WriteString("\n")
		return
	}

	b.WriteString(chars.sideLeft)
	b.WriteString(rep(chars.top, left+2))
	b.WriteString(chars.middle)
	b.WriteString(rep(chars.top, width-left-5))
	b.WriteString(chars.sideRight)
	b.WriteString("\n")
}

// writeTableGroup emits the body rows of one consolidated group.
func writeTableGroup(b *strings.Builder, chars charSet, group result.ConsolidatedGroup, left, width int) {
	names := wrapNames(group.Names, left)
	lines := resultLines(group.Results)

	rows := len(names)
	if len(lines) > rows {
		rows = len(lines)
	}

	for i := 0; i < rows; i++ {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		line := ""
		if i < len(lines) {
			line = lines[i]
		}

		b.WriteString(chars.side + " " + pad(name, left) + " ")
		b.WriteString(chars.side + " " + pad(line, width-left-7) + " ")
		b.WriteString(chars.side)
		b.WriteString("\n")
	}
}

// rep repeats s count times, treating negative counts as zero.
func rep(s string, count int) string {
	if count <= 0 {
		return ""
	}
	return strings.Repeat(s, count)
}
