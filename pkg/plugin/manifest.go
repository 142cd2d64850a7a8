// Package plugin defines the public contract between OpenUsage and the
// provider plugins it loads: the on-disk manifest shape, the normalized
// in-memory plugin record, and the output types a probe produces.
//
// Plugin scripts themselves are JavaScript, not Go, so this package has no
// equivalent of a Go "Plugin interface" to implement — it instead documents
// the JSON shapes that cross the host/script boundary, for the benefit of
// anyone authoring a new provider plugin.
package plugin

// LineType discriminates a ManifestLine / MetricLine variant.
type LineType string

const (
	LineProgress LineType = "progress"
	LineText     LineType = "text"
	LineBadge    LineType = "badge"
)

// ManifestLine is one line descriptor declared in plugin.json. It tells the
// host which metrics a plugin intends to emit and how the tray summary
// should prioritize them; the actual values come from the script at probe
// time (see MetricLine).
type ManifestLine struct {
	Type LineType `json:"type"`
	Label string  `json:"label"`
	Scope string  `json:"scope"`
	// PrimaryOrder ranks progress lines for headline selection; lower wins.
	// Honored only when Type == LineProgress.
	PrimaryOrder *int `json:"primaryOrder,omitempty"`
}

// Manifest is the parsed, still-unvalidated form of plugin.json.
type Manifest struct {
	SchemaVersion int            `json:"schemaVersion"`
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Entry         string         `json:"entry"`
	Icon          string         `json:"icon"`
	BrandColor    string         `json:"brandColor,omitempty"`
	OS            []string       `json:"os,omitempty"`
	Lines         []ManifestLine `json:"lines"`
}

// LoadedPlugin is the validated, in-memory form of a plugin: the parsed
// manifest, its absolute directory, the entry script source, and a
// data-URL-encoded icon. Produced once at startup and never mutated.
type LoadedPlugin struct {
	Manifest     Manifest
	PluginDir    string
	EntryScript  string
	IconDataURL  string
}

// ProgressFormat discriminates how a Progress line's used/limit pair should
// be rendered.
type ProgressFormat struct {
	Kind string `json:"kind"` // "percent", "dollars", or "count"
	Unit string `json:"unit,omitempty"` // only meaningful when Kind == "count"
}

// MetricLine is the normalized, validated unit a probe emits. Exactly one of
// Progress/Text/Badge is populated, mirroring the Type tag.
type MetricLine struct {
	Type LineType `json:"type"`

	// Progress fields.
	Label            string   `json:"label"`
	Used             float64  `json:"used,omitempty"`
	Limit            float64  `json:"limit,omitempty"`
	Format           ProgressFormat `json:"format,omitempty"`
	ResetsAt         string   `json:"resetsAt,omitempty"`
	PeriodDurationMs int64    `json:"periodDurationMs,omitempty"`
	Color            string   `json:"color,omitempty"`

	// Text/Badge fields.
	Value    string `json:"value,omitempty"`
	Text     string `json:"text,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// IsErrorBadge reports whether this line is the canonical error channel: a
// Badge line whose label equals "error" case-insensitively.
func (m MetricLine) IsErrorBadge() bool {
	if m.Type != LineBadge {
		return false
	}
	return equalFold(m.Label, "error")
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Output is the typed, uniform result of one probe: provider identity, an
// optional plan label, and the ordered metric lines the UI/CLI render.
type Output struct {
	ProviderID  string       `json:"providerId"`
	DisplayName string       `json:"displayName"`
	Plan        string       `json:"plan,omitempty"`
	IconURL     string       `json:"iconUrl"`
	Lines       []MetricLine `json:"lines"`
}

// Failed reports whether this output carries the canonical error badge (data
// model invariant 2: an output containing Badge{label="error"} is failed and
// its plan/other lines are not displayed).
func (o Output) Failed() bool {
	for _, l := range o.Lines {
		if l.IsErrorBadge() {
			return true
		}
	}
	return false
}
