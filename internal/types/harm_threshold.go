package types

const (
	HarmDirectionDecrease = "decrease"
	HarmDirectionIncrease = "increase"

	HarmBaselineOtherVariant = "other_variant"
	HarmBaselineValue        = "value"
)

// HarmThreshold is the guardrail rule stored on an experiment. It is a
// blunt instrument, not a significance test: one monitoring pass that sees
// the guarded variant's aggregate move past the magnitude stops the
// experiment.
type HarmThreshold struct {
	// Metric to watch; must be a catalog key. May differ from the
	// experiment's primary metric.
	Metric string `json:"metric"`
	// Direction the damage moves in: "decrease" means lower is worse
	// (revenue), "increase" means higher is worse (cancellations).
	Direction string `json:"direction"`
	// Magnitude is the relative degradation that trips the stop,
	// e.g. 0.2 = 20% worse than the baseline.
	Magnitude float64 `json:"magnitude"`
	// Baseline is "other_variant" (default) or "value".
	Baseline string `json:"baseline,omitempty"`
	// BaselineValue is the fixed pre-experiment baseline when
	// Baseline == "value".
	BaselineValue float64 `json:"baseline_value,omitempty"`
	// Variant restricts the guard to one arm ("A"|"B"); empty guards both.
	Variant string `json:"variant,omitempty"`
}

func (h *HarmThreshold) GuardedVariants() []string {
	switch h.Variant {
	case VariantA:
		return []string{VariantA}
	case VariantB:
		return []string{VariantB}
	default:
		return []string{VariantA, VariantB}
	}
}

// Breached reports whether the observed mean for a guarded variant has
// degraded past the magnitude relative to the baseline mean.
func (h *HarmThreshold) Breached(observed, baseline float64) bool {
	if h.Magnitude <= 0 {
		return false
	}
	switch h.Direction {
	case HarmDirectionIncrease:
		return observed > baseline*(1+h.Magnitude)
	default:
		return observed < baseline*(1-h.Magnitude)
	}
}
