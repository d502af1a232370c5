package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/testutil"
)

const minimalScenario = `
name: minimal
description: one anchor
steps:
  - action: add
    as: a
assertions:
  - type: record_count
    count: 1
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, StepAdd, s.Steps[0].Action)
	assert.Equal(t, ExpectOK, s.Steps[0].expectation())
	require.NotNil(t, s.Assertions[0].Count)
	assert.Equal(t, 1, *s.Assertions[0].Count)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "asserts: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nsteps: [{action: tick}]\nassertions: [{type: record_count, count: 0}]", "name is required"},
		{"missing steps", "name: n\ndescription: d\nassertions: [{type: record_count, count: 0}]", "steps list is required"},
		{"missing assertions", "name: n\ndescription: d\nsteps: [{action: tick}]", "assertions list is required"},
		{"unknown action", "name: n\ndescription: d\nsteps: [{action: jump}]\nassertions: [{type: record_count, count: 0}]", `unknown action "jump"`},
		{"persist without name", "name: n\ndescription: d\nsteps: [{action: persist, id: a}]\nassertions: [{type: record_count, count: 0}]", "persist: name is required"},
		{"manipulate without poses", "name: n\ndescription: d\nsteps: [{action: manipulate, id: a}]\nassertions: [{type: record_count, count: 0}]", "root and target are required"},
		{"bad state", "name: n\ndescription: d\nsteps: [{action: inject, id: a, state: lost}]\nassertions: [{type: record_count, count: 0}]", "lost"},
		{"bad pose", "name: n\ndescription: d\nsteps: [{action: add, pose: {position: [1, 2]}}]\nassertions: [{type: record_count, count: 0}]", "position needs 3 components"},
		{"count missing", "name: n\ndescription: d\nsteps: [{action: tick}]\nassertions: [{type: pending_count}]", "count is required"},
		{"unknown assertion", "name: n\ndescription: d\nsteps: [{action: tick}]\nassertions: [{type: vibes}]", `unknown assertion type "vibes"`},
		{"duplicate persisted", "name: n\ndescription: d\npersisted: [{name: A}, {name: A}]\nsteps: [{action: tick}]\nassertions: [{type: record_count, count: 0}]", `duplicate name "A"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
}

func TestPoseSpec(t *testing.T) {
	var nilSpec *PoseSpec
	p, err := nilSpec.Pose()
	require.NoError(t, err)
	assert.True(t, p.IsIdentity())

	p, err = (&PoseSpec{Position: []float64{1, 2, 3}, Axis: []float64{0, 1, 0}, Degrees: 90}).Pose()
	require.NoError(t, err)
	testutil.RequirePoseEqual(t, testutil.Turned(testutil.At(1, 2, 3), pose.Vec3{Y: 1}, 90), p)

	p, err = (&PoseSpec{Position: []float64{0, 0, 0}, Orientation: []float64{2, 0, 0, 0}}).Pose()
	require.NoError(t, err)
	assert.True(t, p.IsIdentity(), "orientation is normalised")

	for name, ps := range map[string]*PoseSpec{
		"short position": {Position: []float64{1}},
		"both rotations": {Position: []float64{0, 0, 0}, Orientation: []float64{1, 0, 0, 0}, Axis: []float64{0, 1, 0}},
		"zero quat":      {Position: []float64{0, 0, 0}, Orientation: []float64{0, 0, 0, 0}},
		"short quat":     {Position: []float64{0, 0, 0}, Orientation: []float64{1, 0, 0}},
		"zero axis":      {Position: []float64{0, 0, 0}, Axis: []float64{0, 0, 0}, Degrees: 10},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ps.Pose()
			assert.Error(t, err)
		})
	}
}
