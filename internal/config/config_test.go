package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse("empty.cue", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse("anchorsync.cue", []byte(`
db:           "/var/lib/anchors.db"
world_anchor: "Origin"
log_level:    "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, Config{DB: "/var/lib/anchors.db", WorldAnchor: "Origin", LogLevel: "debug"}, cfg)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `colour: "red"`},
		{"bad level", `log_level: "verbose"`},
		{"wrong type", `db: 3`},
		{"empty world name", `world_anchor: ""`},
		{"syntax", `db: "unterminated`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)

			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
		})
	}
}

func TestError_IncludesPosition(t *testing.T) {
	_, err := Parse("pos.cue", []byte("db: \"x.db\"\nlog_level: \"loud\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos.cue:")
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "anchorsync.cue")
	require.NoError(t, os.WriteFile(path, []byte(`world_anchor: "Home"`), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Home", cfg.WorldAnchor)
	assert.Equal(t, "anchors.db", cfg.DB)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
