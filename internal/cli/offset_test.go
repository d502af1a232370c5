package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/testutil"
)

func newOffsetCmd(format string, out *bytes.Buffer) *cobra.Command {
	cmd := NewOffsetCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestOffset_Translation(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newOffsetCmd("text", buf)
	cmd.SetArgs([]string{"--root", "1,2,3", "--target", "0,2,3"})
	require.NoError(t, cmd.Execute())

	got, err := pose.Parse(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	testutil.RequirePoseEqual(t, testutil.At(1, 0, 0), got)
}

func TestOffset_SamePoseIsIdentity(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newOffsetCmd("json", buf)
	cmd.SetArgs([]string{"--root", "4,5,6@0.7071068,0,0.7071068,0", "--target", "4,5,6@0.7071068,0,0.7071068,0"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data OffsetResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	got, err := pose.Parse(resp.Data.Offset)
	require.NoError(t, err)
	assert.True(t, got.IsIdentity(), "offset %s", got)
}

func TestOffset_MapsTargetOntoRoot(t *testing.T) {
	root := testutil.Turned(testutil.At(1, 0, 0), pose.Vec3{Y: 1}, 90)
	target := testutil.Turned(testutil.At(0, 0, 2), pose.Vec3{Z: 1}, 30)

	buf := &bytes.Buffer{}
	cmd := newOffsetCmd("text", buf)
	cmd.SetArgs([]string{"--root", root.String(), "--target", target.String()})
	require.NoError(t, cmd.Execute())

	offset, err := pose.Parse(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	testutil.RequirePoseEqual(t, root, pose.Compose(offset, target))
}

func TestOffset_InvalidPose(t *testing.T) {
	cmd := newOffsetCmd("text", &bytes.Buffer{})
	cmd.SetArgs([]string{"--root", "1,2", "--target", "0,0,0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --root")
}

func TestOffset_RequiredFlags(t *testing.T) {
	cmd := newOffsetCmd("text", &bytes.Buffer{})
	cmd.SetArgs([]string{"--root", "0,0,0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}
