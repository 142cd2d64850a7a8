package bridge

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvGet_RejectsNonAllowListedName(t *testing.T) {
	b := newTestBridge(t, nil)
	v, ok := b.EnvGet("HOME")
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestEnvGet_ReadsAllowListedFromProcessEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-value")
	b := newTestBridge(t, nil)
	v, ok := b.EnvGet("ANTHROPIC_API_KEY")
	require.True(t, ok)
	assert.Equal(t, "sk-test-value", v)
}

func TestEnvGet_CachesAbsentResultAcrossCalls(t *testing.T) {
	b, err := New("test-plugin", "0.0.0-test", t.TempDir(), WithEnvCache(newEnvCache()))
	require.NoError(t, err)

	// t.Setenv restores the original value after the test; the variable is
	// then removed so the lookup really takes the absent path.
	t.Setenv("CODEIUM_API_KEY", "")
	require.NoError(t, os.Unsetenv("CODEIUM_API_KEY"))
	assert.Empty(t, b.envCache.value, "cache starts empty")
	v1, ok1 := b.EnvGet("CODEIUM_API_KEY")
	_, cached := b.envCache.value["CODEIUM_API_KEY"]
	assert.True(t, cached, "first lookup stores its result in the cache")
	v2, ok2 := b.EnvGet("CODEIUM_API_KEY")
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, v1, v2)
}
