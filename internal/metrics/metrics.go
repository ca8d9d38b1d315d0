// Package metrics holds Prometheus instruments shared across the core.
// All collectors register with the global registry, so importing this
// package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenantPools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenant_pools",
			Help: "Number of tenant connection pools currently cached.",
		})

	TenantPoolLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_load_total",
			Help: "Cumulative number of tenant pools successfully provisioned.",
		})

	TenantPoolLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_load_errors_total",
			Help: "Cumulative number of tenant pool provisioning failures.",
		})

	TenantPoolEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_evict_total",
			Help: "Cumulative number of tenant pools evicted from the registry.",
		})

	TokenDecoderBuildTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "token_decoder_build_total",
			Help: "Cumulative number of verifying decoders constructed.",
		})

	AuthRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_reject_total",
			Help: "Request rejections at the tenant/auth boundary, by category.",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveTenantPools,
		TenantPoolLoadTotal,
		TenantPoolLoadErrorsTotal,
		TenantPoolEvictTotal,
		TokenDecoderBuildTotal,
		AuthRejectTotal,
	)
}
