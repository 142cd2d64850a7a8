package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, root, id, manifestJSON, entryContent, iconContent string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifestJSON), 0o644))
	if entryContent != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.js"), []byte(entryContent), 0o644))
	}
	if iconContent != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.svg"), []byte(iconContent), 0o644))
	}
}

func validManifest(id string) string {
	return `{
		"schemaVersion": 1,
		"id": "` + id + `",
		"name": "Test",
		"version": "0.0.1",
		"entry": "plugin.js",
		"icon": "icon.svg",
		"lines": [
			{"type":"progress","label":"A","scope":"overview","primaryOrder":1},
			{"type":"progress","label":"B","scope":"overview"}
		]
	}`
}

func TestLoadDir_HappyPath(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "zeta", validManifest("zeta"), "function probe(){}", "<svg/>")
	writePlugin(t, root, "alpha", validManifest("alpha"), "function probe(){}", "<svg/>")

	loaded := LoadDir(nil, root)
	require.Len(t, loaded, 2)
	assert.Equal(t, "alpha", loaded[0].Manifest.ID, "results must sort ascending by id")
	assert.Equal(t, "zeta", loaded[1].Manifest.ID)
	assert.Contains(t, loaded[0].IconDataURL, "data:image/svg+xml;base64,")
	assert.Equal(t, "function probe(){}", loaded[0].EntryScript)

	first := loaded[0].Manifest.Lines[0]
	require.NotNil(t, first.PrimaryOrder)
	assert.Equal(t, 1, *first.PrimaryOrder)
	assert.Nil(t, loaded[0].Manifest.Lines[1].PrimaryOrder)
}

func TestLoadDir_SkipsEntryEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "evil.js"), []byte("x"), 0o644))

	manifest := `{
		"schemaVersion":1,"id":"evil","name":"Evil","version":"0.0.1",
		"entry":"../../` + filepath.Base(outside) + `/evil.js","icon":"icon.svg","lines":[]
	}`
	writePlugin(t, root, "evil", manifest, "", "<svg/>")

	loaded := LoadDir(nil, root)
	assert.Empty(t, loaded, "plugin escaping its directory must be dropped, not crash the loader")
}

func TestLoadDir_SkipsAbsoluteEntry(t *testing.T) {
	root := t.TempDir()
	manifest := `{"schemaVersion":1,"id":"abs","name":"Abs","version":"0.0.1","entry":"/etc/passwd","icon":"icon.svg","lines":[]}`
	writePlugin(t, root, "abs", manifest, "", "<svg/>")

	loaded := LoadDir(nil, root)
	assert.Empty(t, loaded)
}

func TestLoadDir_FiltersByOS(t *testing.T) {
	root := t.TempDir()
	manifest := `{
		"schemaVersion":1,"id":"nope","name":"Nope","version":"0.0.1",
		"entry":"plugin.js","icon":"icon.svg","os":["plan9"],"lines":[]
	}`
	writePlugin(t, root, "nope", manifest, "function probe(){}", "<svg/>")

	loaded := LoadDir(nil, root)
	assert.Empty(t, loaded, "plugin not declaring the current OS must be dropped")
}

func TestLoadDir_SkipsBadJSONWithoutFailingWholesale(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "broken", `{not json`, "function probe(){}", "<svg/>")
	writePlugin(t, root, "good", validManifest("good"), "function probe(){}", "<svg/>")

	loaded := LoadDir(nil, root)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].Manifest.ID)
}

func TestLoadDir_MissingDirReturnsEmptyNotError(t *testing.T) {
	loaded := LoadDir(nil, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, loaded)
}
