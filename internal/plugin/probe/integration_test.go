package probe

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstory/openusage/internal/plugin"
)

// testdataPluginsDir holds fixture plugins exercising the full manifest ->
// runtime -> coordinator stack (package plugin, package runtime, this
// package), independent of the unit-level fakes each package's own tests use.
const testdataPluginsDir = "../../../testdata/plugins"

func TestRunProbe_FixturePlugins(t *testing.T) {
	loaded := plugin.LoadDir(slog.Default(), testdataPluginsDir)
	require.Len(t, loaded, 2)

	byID := map[string]plugin.LoadedPlugin{}
	for _, p := range loaded {
		byID[p.Manifest.ID] = p
	}

	t.Run("happy path", func(t *testing.T) {
		out := New().RunProbe(byID["demo-usage"], t.TempDir(), "0.0.0-test")
		require.False(t, out.Failed())
		assert.Equal(t, "Max", out.Plan)
		require.Len(t, out.Lines, 2)
		assert.Equal(t, 37.5, out.Lines[0].Used)
	})

	t.Run("script throws", func(t *testing.T) {
		out := New().RunProbe(byID["demo-error"], t.TempDir(), "0.0.0-test")
		require.True(t, out.Failed())
		assert.Equal(t, "Not logged in", out.Lines[0].Text)
	})
}
