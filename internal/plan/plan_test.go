package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "fleetrun/internal/errors"
)

func TestParsePreservesDocumentOrder(t *testing.T) {
	p, err := Parse([]byte(`
zulu:
  - uptime
alpha:
  - id
  - df -h
`))
	require.NoError(t, err)

	entries := p.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "zulu", entries[0].Host)
	assert.Equal(t, []string{"uptime"}, entries[0].Commands)
	assert.Equal(t, "alpha", entries[1].Host)
	assert.Equal(t, []string{"id", "df -h"}, entries[1].Commands)
}

func TestParseScalarCommand(t *testing.T) {
	p, err := Parse([]byte("web01: uptime\n"))
	require.NoError(t, err)

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"uptime"}, entries[0].Commands)
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse([]byte("- just\n- a\n- list\n"))
	require.Error(t, err)
	assert.Equal(t, ferrors.KindMalformedPlan, ferrors.KindOf(err))
}

func TestParseRejectsEmptyCommands(t *testing.T) {
	_, err := Parse([]byte("web01: []\n"))
	require.Error(t, err)
	assert.Equal(t, ferrors.KindMalformedPlan, ferrors.KindOf(err))
}

func TestParseRejectsNestedMapping(t *testing.T) {
	_, err := Parse([]byte("web01:\n  nested: true\n"))
	require.Error(t, err)
	assert.Equal(t, ferrors.KindMalformedPlan, ferrors.KindOf(err))
}

func TestParseEmptyDocument(t *testing.T) {
	p, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Entries())
}

func TestEntriesExpandsAddressBlocks(t *testing.T) {
	p, err := Parse([]byte(`
10.0.0.0/30:
  - uptime
`))
	require.NoError(t, err)

	entries := p.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "10.0.0.1", entries[0].Host)
	assert.Equal(t, "10.0.0.2", entries[1].Host)
	assert.Equal(t, []string{"uptime"}, entries[1].Commands)
}

func TestEntriesFirstOccurrenceWins(t *testing.T) {
	p, err := Parse([]byte(`
web01:
  - uptime
web01:
  - id
`))
	require.NoError(t, err)

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"uptime"}, entries[0].Commands)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yml")
	require.NoError(t, os.WriteFile(path, []byte("web01: uptime\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
