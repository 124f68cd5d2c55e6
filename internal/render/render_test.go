package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrun/internal/result"
)

func singleGroup() []result.HostResult {
	return []result.HostResult{
		{Name: "alpha", Results: []result.CommandResult{{Command: "uptime", Output: "up 1 day"}}},
	}
}

func TestRenderTableASCII(t *testing.T) {
	got := Render(singleGroup(), Options{Style: 1, Width: 30})

	want := strings.Join([]string{
		"*--------+-------------------*",
		"| Server | Result            |",
		"*--------+-------------------*",
		"| alpha  | up 1 day          |",
		"*--------+-------------------*",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderTableEveryLineFullWidth(t *testing.T) {
	results := []result.HostResult{
		{Name: "web01", Results: []result.CommandResult{{Command: "id", Output: "uid=0"}}},
		{Name: "web02", Results: []result.CommandResult{{Command: "id", Output: "uid=0"}}},
		{Name: "db01", Results: []result.CommandResult{{Command: "id", Output: "uid=1\nextra line"}}},
	}

	for style := 0; style < 4; style++ {
		got := Render(results, Options{Style: style, Width: 60})
		for _, line := range strings.Split(strings.TrimRight(got, "\n"), "\n") {
			assert.Equal(t, 60, len([]rune(line)), "style %d line %q", style, line)
		}
	}
}

func TestRenderTableGroupRows(t *testing.T) {
	// more names than result lines: names keep their own rows
	results := []result.HostResult{
		{Name: "a", Results: []result.CommandResult{{Command: "true", Output: "ok"}}},
		{Name: "b", Results: []result.CommandResult{{Command: "true", Output: "ok"}}},
	}
	got := Render(results, Options{Width: 40})
	assert.Contains(t, got, "│ a, b")
	assert.Contains(t, got, "ok")
}

func TestRenderTableJumpHeader(t *testing.T) {
	got := Render(singleGroup(), Options{Width: 60, JumpHost: "bastion"})

	lines := strings.Split(got, "\n")
	require.True(t, len(lines) > 2)
	assert.Contains(t, lines[1], "Server")
	assert.Contains(t, lines[1], "Result")
	assert.Contains(t, lines[1], "Jumpbox: bastion")
	for _, line := range lines[:5] {
		assert.Equal(t, 60, len([]rune(line)))
	}
}

func TestRenderTableInvalidStyleFallsBack(t *testing.T) {
	normal := Render(singleGroup(), Options{Style: 0, Width: 30})
	assert.Equal(t, normal, Render(singleGroup(), Options{Style: -1, Width: 30}))
	assert.Equal(t, normal, Render(singleGroup(), Options{Style: 9, Width: 30}))
}

func TestRenderDefaultWidth(t *testing.T) {
	got := Render(singleGroup(), Options{})
	first := strings.Split(got, "\n")[0]
	assert.Equal(t, 80, len([]rune(first)))
}

func TestRenderCSV(t *testing.T) {
	results := []result.HostResult{
		{Name: "a", Results: []result.CommandResult{{Command: "uptime", Output: "up 1 day"}}},
		{Name: "b", Results: []result.CommandResult{{Command: "uptime", Output: "up 1 day"}}},
		{Name: "c", Results: []result.CommandResult{{Command: "uptime", Output: "down"}}},
	}

	got := Render(results, Options{Mode: ModeCSV})

	want := "server,command,result\r\n" +
		"\"a b\",uptime,\"up 1 day\"\r\n" +
		"c,uptime,down\r\n"
	assert.Equal(t, want, got)
}

func TestRenderCSVSeparatorQuoting(t *testing.T) {
	results := []result.HostResult{
		{Name: "a", Results: []result.CommandResult{{Command: "csv;cmd", Output: "x"}}},
	}

	got := Render(results, Options{Mode: ModeCSV, CSVChar: ";"})
	assert.Contains(t, got, "\"csv;cmd\"")
	assert.Contains(t, got, "server;command;result\r\n")
}

func TestRenderCSVDropsInteriorEmptyLines(t *testing.T) {
	results := []result.HostResult{
		{Name: "a", Results: []result.CommandResult{{Command: "c", Output: "one\n\ntwo"}}},
	}

	got := Render(results, Options{Mode: ModeCSV})
	assert.Contains(t, got, "\"one\ntwo\"")
}

func TestRenderStacked(t *testing.T) {
	results := []result.HostResult{
		{Name: "a", Results: []result.CommandResult{{Command: "c", Output: "first"}}},
		{Name: "b", Results: []result.CommandResult{{Command: "c", Output: "second"}}},
	}

	got := Render(results, Options{Mode: ModeStacked, Width: 10})

	want := "a\n" +
		"----------\n" +
		"first\n" +
		"==========\n" +
		"b\n" +
		"----------\n" +
		"second\n"
	assert.Equal(t, want, got)
}

func TestWrapNames(t *testing.T) {
	assert.Equal(t, []string{"aa, bb", "cc"}, wrapNames([]string{"aa", "bb", "cc"}, 8))
	assert.Equal(t, []string{"aa", "bb", "cc"}, wrapNames([]string{"aa", "bb", "cc"}, 5))
	assert.Equal(t, []string{"one"}, wrapNames([]string{"one"}, 80))
}

func TestLeftLen(t *testing.T) {
	groups := []result.ConsolidatedGroup{
		{Names: []string{"ab", "averylonghostname"}},
	}
	assert.Equal(t, 17, leftLen(groups))
	assert.Equal(t, minLeftLen, leftLen(nil))
}
