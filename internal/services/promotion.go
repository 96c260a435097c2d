package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

// ConfigBus fans promoted configuration out to product surfaces. The
// live_config table stays the source of truth; the bus is a cache and a
// change notification.
type ConfigBus interface {
	PublishLiveConfig(ctx context.Context, cfg *types.LiveConfig) error
}

type PromotionService interface {
	DeclareWinner(ctx context.Context, id uuid.UUID, variant string) (*types.Experiment, error)
	Promote(ctx context.Context, id uuid.UUID, variant string, markPromoted bool) (*types.LiveConfig, error)
}

type promotionService struct {
	db          *gorm.DB
	log         *logger.Logger
	experiments repos.ExperimentRepo
	liveConfigs repos.LiveConfigRepo
	audit       repos.AuditLogRepo
	bus         ConfigBus // nil when redis is not configured
}

func NewPromotionService(db *gorm.DB, baseLog *logger.Logger, experiments repos.ExperimentRepo, liveConfigs repos.LiveConfigRepo, audit repos.AuditLogRepo, bus ConfigBus) PromotionService {
	return &promotionService{
		db:          db,
		log:         baseLog.With("service", "PromotionService"),
		experiments: experiments,
		liveConfigs: liveConfigs,
		audit:       audit,
		bus:         bus,
	}
}

func (s *promotionService) DeclareWinner(ctx context.Context, id uuid.UUID, variant string) (*types.Experiment, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	var declared *types.Experiment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exp, err := s.experiments.GetByID(ctx, tx, id)
		if err != nil {
			return apperr.Internal("get experiment", err)
		}
		if exp == nil {
			return apperr.NotFound("experiment %s not found", id)
		}
		if !exp.IsTerminal() {
			return apperr.InvalidTransition("cannot declare a winner while experiment is %s", exp.Status)
		}
		if exp.WinnerVariant != nil {
			return apperr.AlreadyDecided("winner %s is already declared for experiment %s", *exp.WinnerVariant, id)
		}
		ok, err := s.experiments.SetWinnerIfUnset(ctx, tx, id, variant)
		if err != nil {
			return apperr.Internal("set winner", err)
		}
		if !ok {
			return apperr.AlreadyDecided("winner is already declared for experiment %s", id)
		}
		s.writeAudit(ctx, tx, id, types.AuditActionWinnerDeclared, map[string]interface{}{
			"variant": variant,
		})
		exp.WinnerVariant = &variant
		declared = exp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Winner declared", "experiment_id", id, "variant", variant)
	return declared, nil
}

// Promote publishes one arm's payload as the surface's live configuration.
// Re-promoting the same variant is a no-op; promoting the other arm after a
// prior promotion is allowed but audited as an override. DeclareWinner is
// not a prerequisite: an operator may promote straight from the computed
// summary, which is why every promotion that disagrees with or bypasses the
// declared winner lands in the audit trail.
func (s *promotionService) Promote(ctx context.Context, id uuid.UUID, variant string, markPromoted bool) (*types.LiveConfig, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	var promoted *types.LiveConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exp, err := s.experiments.GetByID(ctx, tx, id)
		if err != nil {
			return apperr.Internal("get experiment", err)
		}
		if exp == nil {
			return apperr.NotFound("experiment %s not found", id)
		}
		if !exp.IsTerminal() {
			return apperr.InvalidTransition("cannot promote while experiment is %s", exp.Status)
		}

		surface := surfaceFor(exp)
		current, err := s.liveConfigs.GetBySurface(ctx, tx, surface)
		if err != nil {
			return apperr.Internal("get live config", err)
		}
		if current != nil && current.ExperimentID == exp.ID && current.Variant == variant {
			// The live row is already right; a late mark_promoted request
			// still gets its timestamp.
			if markPromoted && exp.PromotedAt == nil {
				if err := s.experiments.UpdateFields(ctx, tx, id, map[string]interface{}{
					"promoted_at": time.Now(),
				}); err != nil {
					return apperr.Internal("mark experiment promoted", err)
				}
			}
			promoted = current
			s.log.Debug("Promotion is a no-op, variant already live", "experiment_id", id, "variant", variant)
			return nil
		}

		override := current != nil && current.ExperimentID == exp.ID && current.Variant != variant
		action := types.AuditActionPromotion
		if override {
			action = types.AuditActionPromotionOverride
			s.log.Warn("Promotion overrides previously promoted variant",
				"experiment_id", id, "previous_variant", current.Variant, "variant", variant)
		}

		now := time.Now()
		cfg, err := s.liveConfigs.Upsert(ctx, tx, &types.LiveConfig{
			Surface:      surface,
			ExperimentID: exp.ID,
			Variant:      variant,
			Payload:      exp.VariantPayload(variant),
			PromotedAt:   now,
		})
		if err != nil {
			return apperr.Internal("write live config", err)
		}
		if markPromoted {
			if err := s.experiments.UpdateFields(ctx, tx, id, map[string]interface{}{
				"promoted_at": now,
			}); err != nil {
				return apperr.Internal("mark experiment promoted", err)
			}
		}
		s.writeAudit(ctx, tx, id, action, map[string]interface{}{
			"surface":       surface,
			"variant":       variant,
			"mark_promoted": markPromoted,
		})
		promoted = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil && promoted != nil {
		// Best effort: the durable row already committed and surfaces can
		// fall back to reading it.
		if err := s.bus.PublishLiveConfig(ctx, promoted); err != nil {
			s.log.Warn("Failed to publish live config to bus", "surface", promoted.Surface, "error", err)
		}
	}
	s.log.Info("Variant promoted", "experiment_id", id, "variant", variant, "surface", promoted.Surface)
	return promoted, nil
}

func (s *promotionService) writeAudit(ctx context.Context, tx *gorm.DB, id uuid.UUID, action string, detail map[string]interface{}) {
	raw, err := json.Marshal(detail)
	if err != nil {
		raw = nil
	}
	if _, err := s.audit.Create(ctx, tx, []*types.AuditLog{{
		ExperimentID: id,
		Action:       action,
		Detail:       datatypes.JSON(raw),
	}}); err != nil {
		s.log.Error("Failed to write audit entry", "experiment_id", id, "action", action, "error", err)
	}
}

// surfaceFor keys live configuration by the experiment's category; an
// uncategorized experiment gets its own id-scoped key so it can never
// clobber a surface it does not own.
func surfaceFor(exp *types.Experiment) string {
	if exp.Category != nil {
		return *exp.Category
	}
	return fmt.Sprintf("experiment:%s", exp.ID)
}

func validateVariant(variant string) error {
	if variant != types.VariantA && variant != types.VariantB {
		return apperr.Validation("variant must be %q or %q", types.VariantA, types.VariantB)
	}
	return nil
}
