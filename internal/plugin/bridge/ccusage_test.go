package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCCUsage_ObjectWithDailyPassesThrough(t *testing.T) {
	out, ok := normalizeCCUsage(`{"daily":[{"date":"2026-07-30","cost":1.2}],"totals":{"cost":1.2}}`)
	assert.True(t, ok)
	assert.Contains(t, out, `"daily"`)
	assert.Contains(t, out, `"totals"`)
}

func TestNormalizeCCUsage_BareArrayBecomesDailyObject(t *testing.T) {
	out, ok := normalizeCCUsage("noise\n[]\n")
	assert.True(t, ok)
	assert.JSONEq(t, `{"daily":[]}`, out)
}

func TestNormalizeCCUsage_NonJSONFails(t *testing.T) {
	_, ok := normalizeCCUsage("permission denied")
	assert.False(t, ok)
}

func TestNormalizeCCUsage_ObjectWithoutDailyFails(t *testing.T) {
	_, ok := normalizeCCUsage(`{"totals":{"cost":1.2}}`)
	assert.False(t, ok)
}
