// Package metrics exposes Prometheus counters for token refreshes and
// swallowed platform failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "creatorfeed"

// Recorder records adapter outcomes. A nil *Recorder is valid and records nothing.
type Recorder struct {
	refreshes     *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	postsFetched  *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by platform and result.",
		}, []string{"platform", "result"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Platform fetches that failed and were absorbed.",
		}, []string{"platform", "operation"}),
		postsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_fetched_total",
			Help:      "Normalized posts returned by platform adapters.",
		}, []string{"platform"}),
	}
	reg.MustRegister(r.refreshes, r.fetchFailures, r.postsFetched)
	return r
}

// RefreshAttempt counts one refresh attempt.
func (r *Recorder) RefreshAttempt(platform string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.refreshes.WithLabelValues(platform, result).Inc()
}

// FetchFailure counts one absorbed fetch failure. operation is "posts" or "stats".
func (r *Recorder) FetchFailure(platform, operation string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(platform, operation).Inc()
}

// PostsFetched counts posts returned by a successful fetch.
func (r *Recorder) PostsFetched(platform string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.postsFetched.WithLabelValues(platform).Add(float64(n))
}
