// Package obs exposes prometheus metrics for the credential lifecycle.
package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_refresh_total",
			Help: "Completed token refresh attempts by result.",
		},
		[]string{"result"},
	)

	refreshJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_refresh_joined_total",
		Help: "Callers that joined an already in-flight refresh.",
	})

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_authz_cache_lookups_total",
			Help: "Authorization cache lookups by cache and outcome.",
		},
		[]string{"cache", "outcome"},
	)

	authenticated = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authcore_authenticated",
		Help: "1 when a session is held, 0 otherwise.",
	})
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(refreshTotal, refreshJoined, cacheLookups, authenticated)
}

// RefreshFinished records a completed refresh attempt ("success" or "failure").
func RefreshFinished(result string) { refreshTotal.WithLabelValues(result).Inc() }

// RefreshJoined records a caller that joined the in-flight refresh.
func RefreshJoined() { refreshJoined.Inc() }

// CacheLookup records an authorization cache lookup; cache is "role" or
// "permission", outcome is "hit" or "miss".
func CacheLookup(cache, outcome string) { cacheLookups.WithLabelValues(cache, outcome).Inc() }

// SetAuthenticated flips the session gauge.
func SetAuthenticated(on bool) {
	if on {
		authenticated.Set(1)
	} else {
		authenticated.Set(0)
	}
}
