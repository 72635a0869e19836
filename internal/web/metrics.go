package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

// storeCollector exposes registry gauges and counters straight from the
// store, so a scrape always reflects current state without a separate
// update loop.
type storeCollector struct {
	store *store.Store

	pending  *prometheus.Desc
	verified *prometheus.Desc
	revoked  *prometheus.Desc

	totalVerified *prometheus.Desc
	totalDeauths  *prometheus.Desc
}

func newStoreCollector(st *store.Store) *storeCollector {
	return &storeCollector{
		store: st,
		pending: prometheus.NewDesc(
			"mboauth_users_pending", "Users awaiting staff approval.", nil, nil),
		verified: prometheus.NewDesc(
			"mboauth_users_verified", "Users currently verified.", nil, nil),
		revoked: prometheus.NewDesc(
			"mboauth_users_revoked", "Users with a revocation record.", nil, nil),
		totalVerified: prometheus.NewDesc(
			"mboauth_verifications_total", "Verifications performed since first run.", nil, nil),
		totalDeauths: prometheus.NewDesc(
			"mboauth_deauthorizations_total", "Deauthorizations performed since first run.", nil, nil),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.verified
	ch <- c.revoked
	ch <- c.totalVerified
	ch <- c.totalDeauths
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	pending, verified, revoked := c.store.Counts()
	stats := c.store.Stats()

	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(pending))
	ch <- prometheus.MustNewConstMetric(c.verified, prometheus.GaugeValue, float64(verified))
	ch <- prometheus.MustNewConstMetric(c.revoked, prometheus.GaugeValue, float64(revoked))
	ch <- prometheus.MustNewConstMetric(c.totalVerified, prometheus.CounterValue, float64(stats.TotalVerified))
	ch <- prometheus.MustNewConstMetric(c.totalDeauths, prometheus.CounterValue, float64(stats.TotalDeauths))
}

// metricsHandler builds an isolated registry so the endpoint only carries
// this service's metrics.
func metricsHandler(st *store.Store) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newStoreCollector(st))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
