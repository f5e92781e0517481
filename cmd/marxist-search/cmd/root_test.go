package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "ingest", "reindex", "search", "stats", "feeds", "version"}
	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing subcommand %s", name)
	}
}

func TestRootCmdVersionFlag(t *testing.T) {
	root := NewRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "marxist-search version")
}

func TestSearchCmdRequiresQuery(t *testing.T) {
	root := NewRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"search"})

	assert.Error(t, root.Execute())
}
