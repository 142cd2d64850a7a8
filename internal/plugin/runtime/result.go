package runtime

import (
	"encoding/json"
	"math"

	pkgplugin "github.com/sunstory/openusage/pkg/plugin"
)

type rawResult struct {
	PlanLabel string    `json:"planLabel"`
	Lines     []rawLine `json:"lines"`
}

type rawLine struct {
	Type             string          `json:"type"`
	Label            string          `json:"label"`
	Used             *float64        `json:"used"`
	Limit            *float64        `json:"limit"`
	Format           json.RawMessage `json:"format"`
	ResetsAt         string          `json:"resetsAt"`
	PeriodDurationMs int64           `json:"periodDurationMs"`
	Color            string          `json:"color"`
	Value            string          `json:"value"`
	Text             string          `json:"text"`
	Subtitle         string          `json:"subtitle"`
}

// validateLine discriminates a raw line by type, rejects anything unknown,
// and drops a progress line whose used/limit aren't finite or whose limit
// isn't positive. Everything else passes through unchanged, preserving
// the producer's order.
func validateLine(rl rawLine) (pkgplugin.MetricLine, bool) {
	switch pkgplugin.LineType(rl.Type) {
	case pkgplugin.LineProgress:
		// JSON.stringify turns NaN/Infinity into null, so a missing (nil)
		// number is how a non-finite value reaches this side.
		if rl.Used == nil || rl.Limit == nil || !isFinite(*rl.Used) || !isFinite(*rl.Limit) || *rl.Limit <= 0 {
			return pkgplugin.MetricLine{}, false
		}
		return pkgplugin.MetricLine{
			Type:             pkgplugin.LineProgress,
			Label:            rl.Label,
			Used:             *rl.Used,
			Limit:            *rl.Limit,
			Format:           decodeFormat(rl.Format),
			ResetsAt:         rl.ResetsAt,
			PeriodDurationMs: rl.PeriodDurationMs,
			Color:            rl.Color,
		}, true
	case pkgplugin.LineText:
		return pkgplugin.MetricLine{
			Type:     pkgplugin.LineText,
			Label:    rl.Label,
			Value:    rl.Value,
			Color:    rl.Color,
			Subtitle: rl.Subtitle,
		}, true
	case pkgplugin.LineBadge:
		return pkgplugin.MetricLine{
			Type:     pkgplugin.LineBadge,
			Label:    rl.Label,
			Text:     rl.Text,
			Color:    rl.Color,
			Subtitle: rl.Subtitle,
		}, true
	default:
		return pkgplugin.MetricLine{}, false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// decodeFormat accepts either a bare string ("percent", "dollars") or an
// object ({"count": {"unit": "..."}}) for a progress line's format field,
// defaulting to percent for anything absent or unrecognized.
func decodeFormat(raw json.RawMessage) pkgplugin.ProgressFormat {
	if len(raw) == 0 {
		return pkgplugin.ProgressFormat{Kind: "percent"}
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "percent" || asString == "dollars" {
			return pkgplugin.ProgressFormat{Kind: asString}
		}
		return pkgplugin.ProgressFormat{Kind: "percent"}
	}

	var asObject struct {
		Count *struct {
			Unit string `json:"unit"`
		} `json:"count"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Count != nil {
		return pkgplugin.ProgressFormat{Kind: "count", Unit: asObject.Count.Unit}
	}
	return pkgplugin.ProgressFormat{Kind: "percent"}
}
