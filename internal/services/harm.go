package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

// SweepResult reports what one monitoring pass did.
type SweepResult struct {
	Checked int
	Stopped int
	Errors  int
}

type HarmMonitor interface {
	// Sweep evaluates every RUNNING experiment that declares a harm
	// threshold and auto-stops the breached ones. Failures on one
	// experiment never block the rest of the pass.
	Sweep(ctx context.Context) (SweepResult, error)
}

type harmMonitor struct {
	log         *logger.Logger
	experiments repos.ExperimentRepo
	audit       repos.AuditLogRepo
	results     ResultsService
	lifecycle   ExperimentService
}

func NewHarmMonitor(baseLog *logger.Logger, experiments repos.ExperimentRepo, audit repos.AuditLogRepo, results ResultsService, lifecycle ExperimentService) HarmMonitor {
	return &harmMonitor{
		log:         baseLog.With("service", "HarmMonitor"),
		experiments: experiments,
		audit:       audit,
		results:     results,
		lifecycle:   lifecycle,
	}
}

func (m *harmMonitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	guarded, err := m.experiments.ListRunningWithHarmThreshold(ctx, nil)
	if err != nil {
		return res, apperr.Internal("list guarded experiments", err)
	}
	for _, exp := range guarded {
		res.Checked++
		stopped, err := m.check(ctx, exp)
		if err != nil {
			res.Errors++
			m.log.Warn("Harm check failed, will retry next pass", "experiment_id", exp.ID, "error", err)
			continue
		}
		if stopped {
			res.Stopped++
		}
	}
	m.log.Info("Harm sweep finished", "checked", res.Checked, "stopped", res.Stopped, "errors", res.Errors)
	return res, nil
}

func (m *harmMonitor) check(ctx context.Context, exp *types.Experiment) (bool, error) {
	rule, err := exp.HarmRule()
	if err != nil {
		return false, fmt.Errorf("decode harm threshold: %w", err)
	}
	if rule == nil {
		return false, nil
	}

	aggregates, err := m.results.AggregateMetric(ctx, exp, rule.Metric)
	if err != nil {
		return false, err
	}

	for _, variant := range rule.GuardedVariants() {
		observed := aggregates[variant]
		if observed.Mean == nil {
			// No data is absence, not harm.
			continue
		}
		baseline, ok := m.baselineFor(rule, variant, aggregates)
		if !ok {
			continue
		}
		if !rule.Breached(*observed.Mean, baseline) {
			continue
		}

		reason := fmt.Sprintf("harm threshold breached: variant %s %s=%.4f vs baseline %.4f (magnitude %.2f)",
			variant, rule.Metric, *observed.Mean, baseline, rule.Magnitude)
		if _, err := m.lifecycle.Stop(ctx, exp.ID, reason); err != nil {
			// A concurrent manual stop already froze it; nothing to do.
			if apperr.IsKind(err, apperr.KindInvalidTransition) {
				return false, nil
			}
			return false, err
		}
		m.recordBreach(ctx, exp, rule, variant, *observed.Mean, baseline, reason)
		return true, nil
	}
	return false, nil
}

func (m *harmMonitor) baselineFor(rule *types.HarmThreshold, variant string, aggregates map[string]MetricAggregate) (float64, bool) {
	if rule.Baseline == types.HarmBaselineValue {
		return rule.BaselineValue, true
	}
	other := types.VariantA
	if variant == types.VariantA {
		other = types.VariantB
	}
	agg := aggregates[other]
	if agg.Mean == nil {
		return 0, false
	}
	return *agg.Mean, true
}

func (m *harmMonitor) recordBreach(ctx context.Context, exp *types.Experiment, rule *types.HarmThreshold, variant string, observed, baseline float64, reason string) {
	detail, err := json.Marshal(map[string]interface{}{
		"metric":    rule.Metric,
		"direction": rule.Direction,
		"magnitude": rule.Magnitude,
		"variant":   variant,
		"observed":  observed,
		"baseline":  baseline,
		"reason":    reason,
	})
	if err != nil {
		detail = nil
	}
	if _, err := m.audit.Create(ctx, nil, []*types.AuditLog{{
		ExperimentID: exp.ID,
		Action:       types.AuditActionHarmStop,
		Detail:       datatypes.JSON(detail),
	}}); err != nil {
		// The stop itself already landed; losing the audit row is worth a
		// loud log but not a rollback.
		m.log.Error("Failed to write harm stop audit entry", "experiment_id", exp.ID, "error", err)
	}
	m.log.Warn("Experiment auto-stopped by harm monitor", "experiment_id", exp.ID, "reason", reason)
}
