package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success("ignored in json mode", map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error("PERSIST_FAILURE", "store refused the save", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PERSIST_FAILURE", resp.Error.Code)
	assert.Equal(t, "store refused the save", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"file": "anchorsync.cue", "line": "3"}
	require.NoError(t, formatter.Error("CONFIG", "bad config", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("Store cleared.", map[string]bool{"cleared": true}))
	assert.Equal(t, "Store cleared.\n", buf.String())
}

func TestOutputFormatter_TextSuccessFallsBackToData(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("", 42))
	assert.Equal(t, "42\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("UNAVAILABLE", "store unavailable", "details"))
	assert.Equal(t, "Error [UNAVAILABLE]: store unavailable\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("UNAVAILABLE", "store unavailable", "opener failed"))
	assert.Contains(t, buf.String(), "Details: opener failed")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("quiet by default", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		formatter.VerboseLog("loading %s", "x")
		assert.Empty(t, buf.String())
	})

	t.Run("json mode never writes to stdout", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf, Verbose: true}
		formatter.VerboseLog("loading %s", "x")
		assert.Empty(t, buf.String())
	})

	t.Run("errwriter receives diagnostics", func(t *testing.T) {
		buf := &bytes.Buffer{}
		errBuf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: errBuf, Verbose: true}
		formatter.VerboseLog("loading %s", "x")
		assert.Empty(t, buf.String())
		assert.Equal(t, "loading x\n", errBuf.String())
	})
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad args"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "bad args")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to load script", cause)

	assert.Equal(t, "failed to load script: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
}
