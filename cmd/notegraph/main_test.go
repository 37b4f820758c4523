package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "search", "links", "show", "reset", "watch"} {
		assert.True(t, names[want], "command %q should be registered", want)
	}
}

func TestFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))

	assert.NotNil(t, indexCmd.Flags().Lookup("full"))
	assert.NotNil(t, indexCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, searchCmd.Flags().Lookup("limit"))
	assert.NotNil(t, searchCmd.Flags().Lookup("threshold"))
	assert.NotNil(t, searchCmd.Flags().Lookup("type"))
	assert.NotNil(t, linksCmd.Flags().Lookup("apply"))
	assert.NotNil(t, linksCmd.Flags().Lookup("skip-backlinks"))
	assert.NotNil(t, resetCmd.Flags().Lookup("force"))
}

func TestEffectiveThreshold(t *testing.T) {
	// Config value applies when the flag is untouched.
	assert.Equal(t, float32(0.7), effectiveThreshold(false, 0, 0.7))
	assert.Equal(t, float32(-1), effectiveThreshold(false, 0, -1))

	// An explicit flag wins over config, including zero and -1.
	assert.Equal(t, float32(0.5), effectiveThreshold(true, 0.5, 0.3))
	assert.Equal(t, float32(0), effectiveThreshold(true, 0, 0.3))
	assert.Equal(t, float32(-1), effectiveThreshold(true, -1, 0.3))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\nb\n", 10))
	assert.Equal(t, "abcde...", snippet("abcdefgh", 5))
}
