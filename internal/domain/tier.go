// Package domain contains core business types and interfaces.
//
// This file defines subscription tiers and the table that resolves a Stripe
// price ID to a tier. Two gated actions (clicks and searches) historically had
// separate limit tables keyed by the same price IDs with values that drifted
// apart; they are unified here as named quota dimensions on one tier.
package domain

import (
	"sort"
	"time"
)

// TierID identifies a subscription tier.
type TierID string

const (
	TierFree     TierID = "free"
	TierCreator  TierID = "creator"
	TierPro      TierID = "pro"
	TierSteroids TierID = "steroids"
)

// QuotaDimension names a gated action that has its own daily limit.
type QuotaDimension string

const (
	QuotaClicks   QuotaDimension = "clicks"
	QuotaSearches QuotaDimension = "searches"
)

// Unlimited marks a quota dimension without a cap.
const Unlimited = -1

// Feature is a capability tag attached to a tier.
type Feature string

const (
	// FeatureSearchSettings unlocks the date and count settings of a search.
	FeatureSearchSettings Feature = "search_settings"
	FeatureHistory        Feature = "history"
	FeatureExport         Feature = "export"
	// FeatureRecentSearches unlocks the live recent-searches panel.
	FeatureRecentSearches Feature = "recent_searches"
)

// FeatureSet is an immutable set of features.
type FeatureSet map[Feature]struct{}

// NewFeatureSet builds a FeatureSet from a list of features.
func NewFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the feature.
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// List returns the features in a stable order.
func (s FeatureSet) List() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SubscriptionTier is a named subscription level with its quotas and features.
type SubscriptionTier struct {
	ID           TierID
	Label        string
	PriceIDs     []string
	Quotas       map[QuotaDimension]int
	MaxFetchSize int
	Features     FeatureSet
}

// Quota returns the daily limit for a dimension. A dimension missing from the
// tier is treated as zero so that a misconfigured tier fails closed.
func (t SubscriptionTier) Quota(d QuotaDimension) int {
	return t.Quotas[d]
}

// IsFree returns true for the default tier.
func (t SubscriptionTier) IsFree() bool {
	return t.ID == TierFree
}

// Can reports whether the tier carries a feature.
func (t SubscriptionTier) Can(f Feature) bool {
	return t.Features.Has(f)
}

// ClampFetchSize bounds a requested post count to the tier's maximum.
// Non-positive requests get the maximum.
func (t SubscriptionTier) ClampFetchSize(requested int) int {
	if requested <= 0 || requested > t.MaxFetchSize {
		return t.MaxFetchSize
	}
	return requested
}

// SubscriptionStatus is the subscription state reported by the billing provider.
type SubscriptionStatus struct {
	Subscribed       bool      `json:"subscribed"`
	PriceID          string    `json:"priceId,omitempty"`
	Canceled         bool      `json:"canceled"`
	Status           string    `json:"status,omitempty"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd,omitzero"`
}

// FreeTier is the tier every unknown or absent subscription resolves to.
var FreeTier = SubscriptionTier{
	ID:    TierFree,
	Label: "Free",
	Quotas: map[QuotaDimension]int{
		QuotaClicks:   3,
		QuotaSearches: 25,
	},
	MaxFetchSize: 5,
	Features:     NewFeatureSet(),
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	CreatorMonthlyPriceID  string
	CreatorYearlyPriceID   string
	ProMonthlyPriceID      string
	ProYearlyPriceID       string
	SteroidsMonthlyPriceID string
	SteroidsYearlyPriceID  string
}

// DefaultTiers returns the paid tiers with the price IDs from cfg.
func DefaultTiers(cfg PriceConfig) []SubscriptionTier {
	return []SubscriptionTier{
		{
			ID:       TierCreator,
			Label:    "Creator",
			PriceIDs: []string{cfg.CreatorMonthlyPriceID, cfg.CreatorYearlyPriceID},
			Quotas: map[QuotaDimension]int{
				QuotaClicks:   10,
				QuotaSearches: 100,
			},
			MaxFetchSize: 25,
			Features:     NewFeatureSet(FeatureSearchSettings, FeatureHistory),
		},
		{
			ID:       TierPro,
			Label:    "Pro",
			PriceIDs: []string{cfg.ProMonthlyPriceID, cfg.ProYearlyPriceID},
			Quotas: map[QuotaDimension]int{
				QuotaClicks:   25,
				QuotaSearches: 250,
			},
			MaxFetchSize: 25,
			Features:     NewFeatureSet(FeatureSearchSettings, FeatureHistory, FeatureExport),
		},
		{
			ID:       TierSteroids,
			Label:    "Creator on Steroids",
			PriceIDs: []string{cfg.SteroidsMonthlyPriceID, cfg.SteroidsYearlyPriceID},
			Quotas: map[QuotaDimension]int{
				QuotaClicks:   Unlimited,
				QuotaSearches: Unlimited,
			},
			MaxFetchSize: 50,
			Features:     NewFeatureSet(FeatureSearchSettings, FeatureHistory, FeatureExport, FeatureRecentSearches),
		},
	}
}

// TierTable maps Stripe price IDs to tiers. It is built once and read-only afterwards.
type TierTable struct {
	byPrice map[string]SubscriptionTier
	tiers   []SubscriptionTier
}

// NewTierTable indexes tiers by their price IDs. Empty price IDs are skipped so
// that an unconfigured plan can never match.
func NewTierTable(tiers []SubscriptionTier) *TierTable {
	t := &TierTable{
		byPrice: make(map[string]SubscriptionTier),
		tiers:   append([]SubscriptionTier{FreeTier}, tiers...),
	}
	for _, tier := range tiers {
		for _, priceID := range tier.PriceIDs {
			if priceID != "" {
				t.byPrice[priceID] = tier
			}
		}
	}
	return t
}

// Resolve maps a subscription status to a tier. It never fails: anything that
// is not an active subscription on a known price resolves to FreeTier.
func (t *TierTable) Resolve(status SubscriptionStatus) SubscriptionTier {
	if t == nil || !status.Subscribed || status.PriceID == "" {
		return FreeTier
	}
	if tier, ok := t.byPrice[status.PriceID]; ok {
		return tier
	}
	return FreeTier
}

// Lookup returns the tier for an ID, defaulting to FreeTier.
func (t *TierTable) Lookup(id TierID) SubscriptionTier {
	if t != nil {
		for _, tier := range t.tiers {
			if tier.ID == id {
				return tier
			}
		}
	}
	return FreeTier
}

// Tiers returns every tier, Free first.
func (t *TierTable) Tiers() []SubscriptionTier {
	if t == nil {
		return []SubscriptionTier{FreeTier}
	}
	return t.tiers
}

// KnowsPrice reports whether priceID belongs to a configured tier.
func (t *TierTable) KnowsPrice(priceID string) bool {
	if t == nil || priceID == "" {
		return false
	}
	_, ok := t.byPrice[priceID]
	return ok
}

// ResolveTier resolves status against table. It is the package-level form used
// by callers that hold a table reference.
func ResolveTier(table *TierTable, status SubscriptionStatus) SubscriptionTier {
	return table.Resolve(status)
}
