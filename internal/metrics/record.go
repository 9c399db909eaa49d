package metrics

import (
	"strconv"
	"time"
)

// SearchCompleted records a finished search and its latency.
func SearchCompleted(platform, outcome string, duration time.Duration) {
	SearchesTotal.WithLabelValues(platform, outcome).Inc()
	SearchDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// QuotaDenied records a request refused for an exhausted quota.
func QuotaDenied(tier, dimension string) {
	QuotaDenialsTotal.WithLabelValues(tier, dimension).Inc()
}

// LockoutStarted records a key entering the locked state.
func LockoutStarted(scope string) {
	LockoutsTotal.WithLabelValues(scope).Inc()
}

// TierResolved records the tier a request was served under.
func TierResolved(tier string, degraded bool) {
	TierResolutionsTotal.WithLabelValues(tier, strconv.FormatBool(degraded)).Inc()
}

// ScraperRequest records one provider attempt; status is "ok" or an error class.
func ScraperRequest(platform, status string, posts int) {
	ScraperRequestsTotal.WithLabelValues(platform, status).Inc()
	if posts > 0 {
		ScraperPostsFetched.WithLabelValues(platform).Add(float64(posts))
	}
}

// ExportFinished records the outcome of a result export.
func ExportFinished(format string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	ExportsTotal.WithLabelValues(format, status).Inc()
}
