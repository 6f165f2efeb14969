package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "streamctl", cmd.Use)
	assert.Contains(t, cmd.Long, "constant rate")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"create"}, {"withdraw"}, {"cancel"}, {"pause"}, {"resume"},
		{"show"}, {"list"}, {"grant"}, {"revoke"}, {"authorized"},
		{"events"}, {"verify"}, {"vault", "credit"}, {"vault", "balance"}, {"test"}, {"version"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "now", "as"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestOnBehalfFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"create", "withdraw", "cancel"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("on-behalf"), "%s lacks --on-behalf", name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.NotNil(t, testCmd.Flags().Lookup("update"))
	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "streamctl 0.1.0")
	assert.Contains(t, buf.String(), "database schema 1")
}
