// Package redact implements the OpenUsage Redactor (C1): pure,
// side-effect-free text rewriting that masks secrets before they reach logs
// or response previews. Grounded on the compiled-pattern-table design in
// brennhill-gasoline-mcp-ai-devtools's internal/redaction, adapted to the
// exact value/url/body contract this engine requires.
//
// Every function here must never fail: malformed input is returned
// unchanged rather than causing a panic or error, because it may be
// untrusted bytes from a plugin's network response.
package redact

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var jwtShape = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

// apiKeyShape matches a quoted or bare API-key-looking token: one of the
// fixed prefixes followed by at least 12 URL-safe characters.
var apiKeyShape = regexp.MustCompile(`(?:sk-|pk-|api_|key_|secret_)[A-Za-z0-9_-]{12,}`)

var sensitiveURLTokens = []string{
	"key", "api_key", "apikey", "token", "access_token", "secret", "password",
	"auth", "authorization", "bearer", "credential", "user", "user_id",
	"userid", "account_id", "accountid", "email", "login",
}

// sensitiveJSONFields lists both snake_case and camelCase spellings of every
// field name the body redactor rewrites.
var sensitiveJSONFields = []string{
	"password", "token", "access_token", "accessToken",
	"refresh_token", "refreshToken", "id_token", "idToken",
	"secret", "api_key", "apiKey", "authorization", "bearer", "credential",
	"session_token", "sessionToken", "auth_token", "authToken",
	"user_id", "userId", "account_id", "accountId", "email", "login",
	"analytics_tracking_id", "analyticsTrackingId", "name",
}

var jsonFieldPatterns = compileJSONFieldPatterns(sensitiveJSONFields)

type jsonFieldPattern struct {
	field string
	re    *regexp.Regexp
}

func compileJSONFieldPatterns(fields []string) []jsonFieldPattern {
	patterns := make([]jsonFieldPattern, 0, len(fields))
	for _, f := range fields {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(f) + `"\s*:\s*"([^"]*)"`)
		patterns = append(patterns, jsonFieldPattern{field: f, re: re})
	}
	return patterns
}

// Value implements redact_value: codepoint length <= 12 collapses to the
// literal "[REDACTED]"; longer strings become first4...last4, always
// operating on runes so a multi-byte character is never sliced.
//
// Already-redacted input is returned unchanged — required for idempotence
// (P1): without this guard, re-redacting a previous first4...last4 output
// (itself <= 12 codepoints) would collapse it further to "[REDACTED]".
func Value(s string) string {
	if isAlreadyRedacted(s) {
		return s
	}
	runes := []rune(s)
	if len(runes) <= 12 {
		return "[REDACTED]"
	}
	return string(runes[:4]) + "..." + string(runes[len(runes)-4:])
}

func isAlreadyRedacted(s string) bool {
	if s == "[REDACTED]" {
		return true
	}
	runes := []rune(s)
	return len(runes) == 11 && string(runes[4:7]) == "..."
}

// URL implements redact_url: replaces the value of every query parameter
// whose lowercased name contains a sensitive token; path, fragment,
// parameter order, and non-sensitive values are untouched. Malformed URLs
// are returned unchanged.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery == "" {
		return raw
	}

	pairs := strings.Split(u.RawQuery, "&")
	for i, pair := range pairs {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue // bare parameter name, no value to redact
		}
		name, value := pair[:eq], pair[eq+1:]
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			continue
		}
		if !isSensitiveParam(decodedName) {
			continue
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		pairs[i] = name + "=" + url.QueryEscape(Value(decodedValue))
	}
	u.RawQuery = strings.Join(pairs, "&")
	return u.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range sensitiveURLTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// redactJWTs replaces every JWT-shaped substring whose structure actually
// decodes (three base64url segments, JSON header+payload) with Value(match).
// A string that merely matches the loose regex but fails to decode is left
// alone, cutting false positives the regex alone would redact.
func redactJWTs(s string) string {
	return jwtShape.ReplaceAllStringFunc(s, func(match string) string {
		if !LooksLikeJWT(match) {
			return match
		}
		return Value(match)
	})
}

// Body implements redact_body: JWTs, then API-key-shaped tokens, then
// sensitive JSON field values, in that order.
func Body(body string) string {
	result := redactJWTs(body)
	result = apiKeyShape.ReplaceAllStringFunc(result, Value)
	for _, p := range jsonFieldPatterns {
		result = p.re.ReplaceAllStringFunc(result, func(match string) string {
			sub := p.re.FindStringSubmatch(match)
			if len(sub) < 2 {
				return match
			}
			return `"` + p.field + `": "` + Value(sub[1]) + `"`
		})
	}
	return result
}

// LogLine is the lighter variant used for single log lines: JWT and
// API-key substitutions only, no JSON field rewriting.
func LogLine(line string) string {
	result := redactJWTs(line)
	result = apiKeyShape.ReplaceAllStringFunc(result, Value)
	return result
}

// LooksLikeJWT reports whether s structurally decodes as a JWT (three
// segments, base64url header/payload), used to cut false positives from the
// bare regex pass before logging a detection decision. It never validates a
// signature — there is no key available here — only shape.
func LooksLikeJWT(s string) bool {
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(s, jwt.MapClaims{})
	return err == nil
}
