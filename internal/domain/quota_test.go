package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeterUsage(t *testing.T) {
	tests := []struct {
		name          string
		used, quota   int64
		wantRemaining int64
		wantLimit     bool
		wantPct       int
	}{
		{"nothing used", 0, 25, 25, false, 0},
		{"partially used", 10, 25, 15, false, 40},
		{"rounds to nearest", 1, 3, 2, false, 33},
		{"rounds half up", 1, 8, 7, false, 13},
		{"at quota", 25, 25, 0, true, 100},
		{"quota lowered after usage", 30, 25, 0, true, 100},
		{"zero quota nothing used", 0, 0, 0, true, 100},
		{"zero quota with usage", 4, 0, 0, true, 100},
		{"negative used clamps", -3, 10, 10, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MeterUsage(tt.used, tt.quota)
			assert.Equal(t, tt.wantRemaining, m.Remaining)
			assert.Equal(t, tt.wantLimit, m.HasReachedLimit)
			assert.Equal(t, tt.wantPct, m.Percentage)
			assert.False(t, m.Unlimited)
		})
	}
}

func TestMeterUsage_Properties(t *testing.T) {
	for quota := int64(1); quota <= 40; quota++ {
		for used := int64(0); used <= 60; used++ {
			m := MeterUsage(used, quota)
			assert.GreaterOrEqual(t, m.Percentage, 0)
			assert.LessOrEqual(t, m.Percentage, 100)
			assert.Equal(t, used >= quota, m.HasReachedLimit, "used=%d quota=%d", used, quota)
			assert.GreaterOrEqual(t, m.Remaining, int64(0))
		}
	}
}

func TestMeterUsage_Unlimited(t *testing.T) {
	m := MeterUsage(10_000, Unlimited)
	assert.True(t, m.Unlimited)
	assert.False(t, m.HasReachedLimit)
	assert.Equal(t, 0, m.Percentage)
	assert.Equal(t, int64(Unlimited), m.Remaining)
}

func TestNewUsage(t *testing.T) {
	start, end := DayWindow(time.Date(2025, 3, 9, 15, 4, 0, 0, time.UTC))
	u := NewUsage(QuotaSearches, 5, FreeTier, start, end)

	assert.Equal(t, QuotaSearches, u.Dimension)
	assert.Equal(t, int64(5), u.Used)
	assert.Equal(t, int64(25), u.Quota)
	assert.Equal(t, int64(20), u.Remaining)
	assert.Equal(t, 20, u.Percentage)
	assert.Equal(t, start, u.PeriodStart)
	assert.Equal(t, end, u.PeriodEnd)
}

func TestDayWindow(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2025, 12, 31, 23, 59, 59, 0, loc)

	start, end := DayWindow(now)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, loc), end)
	assert.Equal(t, loc, start.Location())
}

func TestActionForDimension(t *testing.T) {
	assert.Equal(t, ActionClick, ActionForDimension(QuotaClicks))
	assert.Equal(t, ActionSearch, ActionForDimension(QuotaSearches))
}
