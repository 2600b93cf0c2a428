package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"classify", "train", "evaluate", "geocode", "results", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "naf-analyzer", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestClassifyCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "from-db", "format", "persist", "offline", "output"} {
		require.NotNil(t, classifyCmd.Flags().Lookup(name), "classify should have --%s", name)
	}
	assert.Equal(t, "json", classifyCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "1000", classifyCmd.Flags().Lookup("limit").DefValue)
}

func TestTrainCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "validation", "output", "c", "unweighted"} {
		require.NotNil(t, trainCmd.Flags().Lookup(name), "train should have --%s", name)
	}
	assert.Equal(t, "model.json", trainCmd.Flags().Lookup("output").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestGeocodeCommand_Args(t *testing.T) {
	assert.Error(t, geocodeCmd.Args(geocodeCmd, []string{"Miami"}))
	assert.NoError(t, geocodeCmd.Args(geocodeCmd, []string{"Miami", "FL"}))
}

func TestResultsCommand_Flags(t *testing.T) {
	flag := resultsCmd.Flags().Lookup("label")
	require.NotNil(t, flag)
	assert.Equal(t, "-1", flag.DefValue)
	assert.Equal(t, "100", resultsCmd.Flags().Lookup("limit").DefValue)
}
