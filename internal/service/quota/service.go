// Package quota implements the Usage Quota Gate: per-feature, per-period
// usage limits differentiated by subscription tier, guarding the paid
// features (the firasa AI report, boosts, super likes, undo).
package quota

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/repository"
)

type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodMonthly PeriodType = "monthly"
)

// FeatureConfig describes one gated feature. A nil PremiumLimit means
// unlimited for premium members; a non-nil PriceCents offers an a-la-carte
// purchase once the limit is exhausted.
type FeatureConfig struct {
	Period       PeriodType
	FreeLimit    int
	PremiumLimit *int
	PriceCents   *int
}

// DefaultFeatures is the production feature catalog.
func DefaultFeatures() map[string]FeatureConfig {
	return map[string]FeatureConfig{
		"firasa_report": {Period: PeriodMonthly, FreeLimit: 1, PremiumLimit: intPtr(10), PriceCents: intPtr(499)},
		"profile_boost": {Period: PeriodMonthly, FreeLimit: 1, PremiumLimit: intPtr(4), PriceCents: intPtr(299)},
		"super_like":    {Period: PeriodDaily, FreeLimit: 1, PremiumLimit: intPtr(10)},
		"undo_swipe":    {Period: PeriodDaily, FreeLimit: 0, PremiumLimit: nil},
	}
}

func intPtr(v int) *int { return &v }

// Service contains the quota business logic.
type Service struct {
	appCtx   *app.AppContext
	quotas   *repository.QuotaRepository
	profiles *repository.ProfileRepository
	features map[string]FeatureConfig

	// now is injectable so period rollover is testable.
	now func() time.Time
}

// NewService creates the quota service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		quotas:   repository.NewQuotaRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		features: DefaultFeatures(),
		now:      time.Now,
	}
}

// Status is the read-only answer of CheckLimit.
type Status struct {
	Feature         string `json:"feature"`
	Allowed         bool   `json:"allowed"`
	CurrentUsage    int    `json:"current_usage"`
	Limit           *int   `json:"limit"` // nil means unlimited
	Remaining       *int   `json:"remaining"`
	IsPremium       bool   `json:"is_premium"`
	RequiresPayment bool   `json:"requires_payment"`
	PriceCents      *int   `json:"price_cents,omitempty"`
}

// CheckLimit reports whether the user may use the feature right now. Free of
// side effects; safe to call any number of times.
func (s *Service) CheckLimit(ctx context.Context, userID uint64, feature string) (*Status, error) {
	cfg, ok := s.features[feature]
	if !ok {
		return nil, apperr.Validation("unknown feature %q", feature)
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", userID)
		}
		return nil, err
	}
	isPremium := profile.Tier == db.TierPremium

	limit := &cfg.FreeLimit
	if isPremium {
		limit = cfg.PremiumLimit
	}

	count, err := s.quotas.GetCount(ctx, userID, feature, s.periodKey(cfg.Period))
	if err != nil {
		return nil, err
	}

	status := &Status{
		Feature:      feature,
		CurrentUsage: count,
		Limit:        limit,
		IsPremium:    isPremium,
		PriceCents:   cfg.PriceCents,
	}
	if limit == nil {
		status.Allowed = true
		return status, nil
	}

	remaining := *limit - count
	if remaining < 0 {
		remaining = 0
	}
	status.Remaining = &remaining
	status.Allowed = count < *limit
	status.RequiresPayment = !status.Allowed && cfg.PriceCents != nil
	return status, nil
}

// Consume verifies the limit and atomically increments the counter, returning
// the new count. Called exactly once per successful use of the gated feature.
//
// For limited features the increment itself is the gate: it only lands while
// the counter is below the limit, so racing double-submits cannot push usage
// past it. The pre-check exists to answer denied callers without a write.
func (s *Service) Consume(ctx context.Context, userID uint64, feature string) (int, error) {
	status, err := s.CheckLimit(ctx, userID, feature)
	if err != nil {
		return 0, err
	}
	cfg := s.features[feature]

	if status.Limit == nil {
		return s.quotas.Increment(ctx, userID, feature, string(cfg.Period), s.periodKey(cfg.Period))
	}
	if !status.Allowed {
		return 0, &apperr.QuotaError{
			Feature:      feature,
			CurrentUsage: status.CurrentUsage,
			Limit:        *status.Limit,
			PriceCents:   status.PriceCents,
		}
	}

	count, incremented, err := s.quotas.IncrementBelow(
		ctx, userID, feature, string(cfg.Period), s.periodKey(cfg.Period), *status.Limit)
	if err != nil {
		return 0, err
	}
	if !incremented {
		// Lost the race against a concurrent consume that hit the limit.
		return 0, &apperr.QuotaError{
			Feature:      feature,
			CurrentUsage: count,
			Limit:        *status.Limit,
			PriceCents:   status.PriceCents,
		}
	}
	return count, nil
}

// periodKey derives the UTC calendar bucket at call time. A request arriving
// at rollover uses the new key; there is no grace window.
func (s *Service) periodKey(period PeriodType) string {
	now := s.now().UTC()
	if period == PeriodMonthly {
		return now.Format("2006-01")
	}
	return now.Format("2006-01-02")
}
