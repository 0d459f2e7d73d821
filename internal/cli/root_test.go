package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	want := []string{
		"add", "search", "context", "profile", "list",
		"graph", "forget", "clear", "status", "hook", "monitor",
	}

	registered := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	flags := GetRootCmd().PersistentFlags()

	assert.NotNil(t, flags.Lookup("config"))
	assert.NotNil(t, flags.Lookup("log-level"))
}

func TestRootCommand_Version(t *testing.T) {
	root := GetRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), version)
}

func TestAddCommand_RequiresContent(t *testing.T) {
	root := GetRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"add"})

	assert.Error(t, root.Execute())
}

func TestGraphCommand_RequiresNodeID(t *testing.T) {
	root := GetRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"graph"})

	assert.Error(t, root.Execute())
}
