// Package quota enforces per-user monthly usage limits on metered features.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
	"github.com/hireready/backend/internal/metrics"
)

var ErrInactiveUser = errors.New("user is not active")

// ExceededError reports an exhausted monthly allowance.
type ExceededError struct {
	Feature string
	Tier    entitlement.Tier
	Limit   int
	Period  string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("monthly limit of %d reached for %s on the %s tier (%s)", e.Limit, e.Feature, e.Tier, e.Period)
}

// NotEntitledError is returned when the user's tier lacks a feature.
// RequiredTier is empty for features no tier grants.
type NotEntitledError struct {
	Feature      string
	Tier         entitlement.Tier
	RequiredTier entitlement.Tier
}

func (e *NotEntitledError) Error() string {
	if e.RequiredTier == "" {
		return fmt.Sprintf("unknown feature %q", e.Feature)
	}
	return fmt.Sprintf("%s requires the %s tier, user is on %s", e.Feature, e.RequiredTier, e.Tier)
}

// Decision is the outcome of an allowed use.
type Decision struct {
	Feature   string `json:"feature"`
	Allowed   bool   `json:"allowed"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Period    string `json:"period"`
}

type FeatureUsage struct {
	Feature   string `json:"feature"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type Report struct {
	Tier     entitlement.Tier `json:"tier"`
	Period   string           `json:"period"`
	Features []FeatureUsage   `json:"features"`
}

type Tracker struct {
	users db.UserStore
	usage db.UsageStore
	now   func() time.Time
}

func NewTracker(store db.Store) *Tracker {
	return &Tracker{users: store.Users(), usage: store.Usage(), now: time.Now}
}

// WithClock replaces the time source that picks the period.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Entitlement loads an active user and resolves their tier.
func (t *Tracker) Entitlement(ctx context.Context, userID uuid.UUID) (*db.User, entitlement.Entitlement, error) {
	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return nil, entitlement.Entitlement{}, err
	}
	if !user.IsActive {
		return nil, entitlement.Entitlement{}, ErrInactiveUser
	}
	ent, ok := entitlement.Resolve(user.Tier)
	if !ok {
		return nil, entitlement.Entitlement{}, fmt.Errorf("user %s: %w: %q", user.ID, entitlement.ErrUnknownTier, user.Tier)
	}
	return user, ent, nil
}

// CheckAccess returns a NotEntitledError unless the user's tier grants feature.
func (t *Tracker) CheckAccess(ctx context.Context, userID uuid.UUID, feature string) (entitlement.Entitlement, error) {
	_, ent, err := t.Entitlement(ctx, userID)
	if err != nil {
		return ent, err
	}
	if !ent.HasFeature(feature) {
		required, _ := entitlement.RequiredTier(feature)
		return ent, &NotEntitledError{Feature: feature, Tier: ent.Tier, RequiredTier: required}
	}
	return ent, nil
}

// CheckAndConsume records one use of feature for the current period, or
// returns an ExceededError when the allowance is spent. Unmetered and
// unlimited features never write.
func (t *Tracker) CheckAndConsume(ctx context.Context, userID uuid.UUID, feature string) (*Decision, error) {
	ent, err := t.CheckAccess(ctx, userID, feature)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	period := db.PeriodOf(now)

	limit, metered := ent.Limit(feature)
	if !metered || limit == entitlement.Unlimited {
		metrics.RecordQuotaDecision(feature, true)
		return &Decision{
			Feature:   feature,
			Allowed:   true,
			Limit:     entitlement.Unlimited,
			Remaining: entitlement.Unlimited,
			Period:    period,
		}, nil
	}

	exceeded := &ExceededError{Feature: feature, Tier: ent.Tier, Limit: limit, Period: period}
	if limit <= 0 {
		metrics.RecordQuotaDecision(feature, false)
		return nil, exceeded
	}

	used, allowed, err := t.usage.Consume(ctx, userID, feature, period, limit, now)
	if err != nil {
		return nil, err
	}
	metrics.RecordQuotaDecision(feature, allowed)
	if !allowed {
		return nil, exceeded
	}

	return &Decision{
		Feature:   feature,
		Allowed:   true,
		Used:      used,
		Limit:     limit,
		Remaining: limit - used,
		Period:    period,
	}, nil
}

// Usage reports current-period consumption of every metered feature of the
// user's tier.
func (t *Tracker) Usage(ctx context.Context, userID uuid.UUID) (*Report, error) {
	_, ent, err := t.Entitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	period := db.PeriodOf(t.now())
	records, err := t.usage.ListForPeriod(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	used := make(map[string]int, len(records))
	for _, r := range records {
		used[r.FeatureName] = r.UsageCount
	}

	report := &Report{Tier: ent.Tier, Period: period, Features: make([]FeatureUsage, 0, len(ent.Quotas))}
	for feature, limit := range ent.Quotas {
		fu := FeatureUsage{Feature: feature, Used: used[feature], Limit: limit, Remaining: entitlement.Unlimited}
		if limit != entitlement.Unlimited {
			fu.Remaining = max(limit-fu.Used, 0)
		}
		report.Features = append(report.Features, fu)
	}
	sort.Slice(report.Features, func(i, j int) bool {
		return report.Features[i].Feature < report.Features[j].Feature
	})
	return report, nil
}
