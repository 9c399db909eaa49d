package domain

import (
	"math"
	"time"
)

// ActionType identifies a metered user action as stored in the usage log.
type ActionType string

const (
	ActionClick  ActionType = "click"
	ActionSearch ActionType = "instagram_search"
)

// ActionForDimension returns the logged action that counts against a quota dimension.
func ActionForDimension(d QuotaDimension) ActionType {
	if d == QuotaClicks {
		return ActionClick
	}
	return ActionSearch
}

// Usage is a user's consumption of one quota dimension within a period.
type Usage struct {
	Dimension       QuotaDimension `json:"dimension"`
	Used            int64          `json:"used"`
	Quota           int64          `json:"quota"`
	Remaining       int64          `json:"remaining"`
	HasReachedLimit bool           `json:"hasReachedLimit"`
	Percentage      int            `json:"usagePercentage"`
	Unlimited       bool           `json:"unlimited"`
	PeriodStart     time.Time      `json:"periodStart"`
	PeriodEnd       time.Time      `json:"periodEnd"`
}

// UsageMeter holds the arithmetic results for a (used, quota) pair.
type UsageMeter struct {
	Remaining       int64
	HasReachedLimit bool
	Percentage      int
	Unlimited       bool
}

// MeterUsage computes remaining, limit and percentage for used actions against
// quota. A zero quota is always at the limit (100%), a quota lowered below the
// current usage never yields negative remaining, and Unlimited is never reached.
func MeterUsage(used, quota int64) UsageMeter {
	if used < 0 {
		used = 0
	}
	if quota < 0 {
		return UsageMeter{Remaining: Unlimited, Unlimited: true}
	}
	if quota == 0 {
		return UsageMeter{HasReachedLimit: true, Percentage: 100}
	}

	pct := int(math.Round(float64(used) / float64(quota) * 100))
	if pct > 100 {
		pct = 100
	}

	return UsageMeter{
		Remaining:       max(0, quota-used),
		HasReachedLimit: used >= quota,
		Percentage:      pct,
	}
}

// NewUsage meters used against the tier's quota for dimension d within period.
func NewUsage(d QuotaDimension, used int64, tier SubscriptionTier, start, end time.Time) Usage {
	quota := int64(tier.Quota(d))
	m := MeterUsage(used, quota)
	if used < 0 {
		used = 0
	}
	return Usage{
		Dimension:       d,
		Used:            used,
		Quota:           quota,
		Remaining:       m.Remaining,
		HasReachedLimit: m.HasReachedLimit,
		Percentage:      m.Percentage,
		Unlimited:       m.Unlimited,
		PeriodStart:     start,
		PeriodEnd:       end,
	}
}

// DayWindow returns the local calendar day containing now as [start, end).
func DayWindow(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 0, 1)
	return start, end
}
