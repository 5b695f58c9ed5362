package gemini

import "strings"

// Tier buckets models by capability. Pro-tier models carry tighter per-minute
// quotas and higher per-token rates than flash-tier ones.
type Tier string

const (
	TierFlash Tier = "flash"
	TierPro   Tier = "pro"
)

func TierOf(model string) Tier {
	if strings.Contains(strings.ToLower(model), "pro") {
		return TierPro
	}
	return TierFlash
}

// ConcurrencyLimit bounds parallel requests against a model so the pipeline
// stays under its per-minute quota.
func ConcurrencyLimit(model string) int {
	if TierOf(model) == TierPro {
		return 10
	}
	return 25
}

// Per-million-token rates in USD, by tier. Output tokens for media models
// account for the generated image/audio payload.
var rates = map[Tier]struct {
	inputPerM  float64
	outputPerM float64
}{
	TierFlash: {inputPerM: 0.30, outputPerM: 2.50},
	TierPro:   {inputPerM: 2.00, outputPerM: 12.00},
}

// EstimatedUsage supplies fallback token counts for responses whose usage
// metadata came back zero or absent. The figures are fixed per tier so cost
// accounting stays deterministic across retries.
func EstimatedUsage(model string, kind string) Usage {
	tier := TierOf(model)
	switch kind {
	case "image":
		if tier == TierPro {
			return Usage{InputTokens: 520, OutputTokens: 1290}
		}
		return Usage{InputTokens: 420, OutputTokens: 1100}
	case "audio":
		if tier == TierPro {
			return Usage{InputTokens: 180, OutputTokens: 900}
		}
		return Usage{InputTokens: 150, OutputTokens: 750}
	default:
		return Usage{InputTokens: 300, OutputTokens: 300}
	}
}

// Cost prices a usage record against the model's tier.
func Cost(model string, u Usage) float64 {
	r := rates[TierOf(model)]
	return float64(u.InputTokens)/1e6*r.inputPerM + float64(u.OutputTokens)/1e6*r.outputPerM
}
