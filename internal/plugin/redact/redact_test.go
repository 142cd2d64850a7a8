package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_ShortCollapsesToLiteral(t *testing.T) {
	assert.Equal(t, "[REDACTED]", Value("short"))
	assert.Equal(t, "[REDACTED]", Value("exactly12chr"))
}

func TestValue_LongKeepsFirstAndLast4(t *testing.T) {
	got := Value("sk-1234567890abcdef")
	assert.Equal(t, "sk-1...cdef", got)
	assert.Equal(t, 11, len([]rune(got)))
}

func TestValue_UTF8SafeNoMidCharacterSlice(t *testing.T) {
	s := "日本語のとても長いテキストです123456"
	got := Value(s)
	runes := []rune(got)
	assert.Equal(t, 11, len(runes))
	assert.Equal(t, "...", string(runes[4:7]))
}

func TestValue_Idempotent(t *testing.T) {
	for _, s := range []string{"short", "sk-1234567890abcdef", "日本語のとても長いテキストです123456", ""} {
		once := Value(s)
		twice := Value(once)
		assert.Equal(t, once, twice, "redacting twice must equal redacting once for %q", s)
	}
}

func TestURL_RedactsOnlySensitiveParams(t *testing.T) {
	in := "https://api.example.com/v1?api_key=sk-1234567890abcdef&page=2#frag"
	got := URL(in)
	assert.Contains(t, got, "api_key=sk-1...cdef")
	assert.Contains(t, got, "page=2")
	assert.Contains(t, got, "#frag")
	assert.Contains(t, got, "/v1?")
}

func TestURL_PreservesOrderAndNonSensitiveValues(t *testing.T) {
	in := "https://x.test/p?z=1&token=abcdefghijklmnop&a=2"
	got := URL(in)
	zIdx := indexOf(got, "z=1")
	tokenIdx := indexOf(got, "token=")
	aIdx := indexOf(got, "a=2")
	assert.True(t, zIdx < tokenIdx && tokenIdx < aIdx, "parameter order must be preserved")
}

func TestURL_MalformedReturnsUnchanged(t *testing.T) {
	in := "://not a url"
	assert.Equal(t, in, URL(in))
}

func TestURL_Idempotent(t *testing.T) {
	in := "https://api.example.com/v1?api_key=sk-1234567890abcdef&user_id=user-iupzZ7KFykMLrnzpkHSq7wjo"
	once := URL(in)
	twice := URL(once)
	assert.Equal(t, once, twice)
}

func TestBody_RedactsSensitiveFieldsBothCases(t *testing.T) {
	in := `{"user_id":"user-iupzZ7KFykMLrnzpkHSq7wjo"}`
	got := Body(in)
	assert.Equal(t, `{"user_id": "user...7wjo"}`, got)
	assert.Equal(t, `{"userId": "user...7wjo"}`, Body(`{"userId":"user-iupzZ7KFykMLrnzpkHSq7wjo"}`))
}

func TestBody_RedactsAPIKeyShapedToken(t *testing.T) {
	in := `key=sk-1234567890abcdef end`
	got := Body(in)
	assert.Contains(t, got, "sk-1...cdef")
}

func TestBody_Idempotent(t *testing.T) {
	in := `{"access_token":"abcdefghijklmnopqrstuvwxyz","password":"hi"}`
	once := Body(in)
	twice := Body(once)
	assert.Equal(t, once, twice)
}

func TestLogLine_OnlyJWTAndAPIKey(t *testing.T) {
	in := `{"email":"someone@example.com"}` // not jwt/api-key shaped, untouched by LogLine
	assert.Equal(t, in, LogLine(in))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func FuzzValue(f *testing.F) {
	f.Add("short")
	f.Add("sk-1234567890abcdef")
	f.Add("")
	f.Fuzz(func(t *testing.T, s string) {
		once := Value(s)
		twice := Value(once)
		if once != twice {
			t.Fatalf("Value not idempotent for %q: once=%q twice=%q", s, once, twice)
		}
	})
}

func FuzzBody(f *testing.F) {
	f.Add(`{"token":"abc"}`)
	f.Fuzz(func(t *testing.T, s string) {
		// must never panic on arbitrary bytes
		_ = Body(s)
	})
}
