package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_RejectsExtraArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"one", "two"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	require.Error(t, err)
}

func TestNewRootCommand_MissingConfigFileIsConfigError(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"/nonexistent/pulsived.yaml"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, exitConfigError, ee.code)
}

func TestNewLogger_ConsoleVsJSON(t *testing.T) {
	var jsonBuf, consoleBuf bytes.Buffer

	jsonLogger := newLogger(&jsonBuf, false)
	jsonLogger.Info().Msg("hello")
	assert.Contains(t, jsonBuf.String(), `"message":"hello"`)

	consoleLogger := newLogger(&consoleBuf, true)
	consoleLogger.Info().Msg("hello")
	assert.Contains(t, consoleBuf.String(), "hello")
}
