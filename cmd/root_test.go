package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "backfill", "baseline", "migrate", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "sprawl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("region"))
}

func TestRunCommand_RequiredFlags(t *testing.T) {
	flag := runCmd.Flags().Lookup("period")
	require.NotNil(t, flag, "run command should have --period flag")
}

func TestBackfillCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to"} {
		assert.NotNil(t, backfillCmd.Flags().Lookup(name), "backfill should have --%s", name)
	}
}

func TestBaselineCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range baselineCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["reset"])
	assert.NotNil(t, baselineResetCmd.Flags().Lookup("from"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
