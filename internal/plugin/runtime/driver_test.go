package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstory/openusage/internal/plugin/bridge"
	pkgplugin "github.com/sunstory/openusage/pkg/plugin"
)

func newTestBridge(t *testing.T) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New("test-plugin", "0.0.0-test", t.TempDir())
	require.NoError(t, err)
	return b
}

func TestDriver_HappyPathProgressLines(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude", Name: "Claude"},
		EntryScript: `function probe() {
  host.log.info("probing at " + ctx.nowIso);
  return {
    planLabel: "Max",
    lines: [
      ctx.line.progress("Session", 37.5, 100, "percent", {resetsAt: "2026-02-20T12:00:00Z"}),
      ctx.line.progress("Weekly", 62, 100, "percent", {resetsAt: "2026-02-23T00:00:00Z"})
    ]
  };
}`,
	}

	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	assert.Equal(t, "Max", result.PlanLabel)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, pkgplugin.LineProgress, result.Lines[0].Type)
	assert.Equal(t, "Session", result.Lines[0].Label)
	assert.Equal(t, 37.5, result.Lines[0].Used)
	assert.Equal(t, "percent", result.Lines[0].Format.Kind)
	assert.Equal(t, "2026-02-20T12:00:00Z", result.Lines[0].ResetsAt)
}

func TestDriver_ScriptThrowSurfacesMessageOnly(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest:    pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() { throw new Error("Not logged in"); }`,
	}

	_, err := New().Run(plug, newTestBridge(t))
	require.Error(t, err)
	assert.Equal(t, "Not logged in", err.Error())
}

func TestDriver_MissingProducerFunction(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest:    pkgplugin.Manifest{ID: "claude"},
		EntryScript: `var x = 1;`,
	}
	_, err := New().Run(plug, newTestBridge(t))
	require.Error(t, err)
}

func TestDriver_DropsNonPositiveLimitProgressLine(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() {
  return { lines: [
    ctx.line.progress("Bad", 10, 0, "percent"),
    ctx.line.text("OK", "fine")
  ] };
}`,
	}
	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "OK", result.Lines[0].Label)
}

func TestDriver_UnknownLineTypeDropped(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() {
  return { lines: [ {type:"chart", label:"Nope"} ] };
}`,
	}
	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	assert.Empty(t, result.Lines)
}

func TestDriver_NonFiniteUsedDropsLine(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() {
  return { lines: [ ctx.line.progress("Bad", 1/0, 100, "percent") ] };
}`,
	}
	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	assert.Empty(t, result.Lines)
}

func TestDriver_Base64RoundTrip(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() {
  var original = "hello world!";
  var decoded = ctx.base64.decode(ctx.base64.encode(original));
  return { lines: [ ctx.line.text("roundtrip", decoded === original ? "ok" : "mismatch") ] };
}`,
	}
	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "ok", result.Lines[0].Value)
}

func TestDriver_JWTDecodePayload(t *testing.T) {
	plug := pkgplugin.LoadedPlugin{
		Manifest: pkgplugin.Manifest{ID: "claude"},
		EntryScript: `function probe() {
  var header = ctx.base64.encode(JSON.stringify({alg:"none"}));
  var payload = ctx.base64.encode(JSON.stringify({sub:"abc123", plan:"max"}));
  var token = header + "." + payload + ".sig";
  var decoded = ctx.jwt.decodePayload(token);
  return { lines: [ ctx.line.text("plan", decoded ? decoded.plan : "none") ] };
}`,
	}
	result, err := New().Run(plug, newTestBridge(t))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "max", result.Lines[0].Value)
}
