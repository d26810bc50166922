package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingComputationsTotal counts pricing cache misses that ran the full computation.
	PricingComputationsTotal *prometheus.CounterVec
	// PricingCacheLookupsTotal counts memoization cache lookups by outcome.
	PricingCacheLookupsTotal *prometheus.CounterVec
	// OrdersPlacedTotal counts order placement outcomes.
	OrdersPlacedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingComputationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_computations_total",
			Help:      "Count of computed pricing results by payment method and validity.",
		}, []string{"method", "valid"})
		PricingCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_cache_lookups_total",
			Help:      "Count of pricing cache lookups by result.",
		}, []string{"result"})
		OrdersPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of order placement attempts by payment method and result.",
		}, []string{"method", "result"})

		PricingComputationsTotal = registerOrReuse(reg, PricingComputationsTotal)
		PricingCacheLookupsTotal = registerOrReuse(reg, PricingCacheLookupsTotal)
		OrdersPlacedTotal = registerOrReuse(reg, OrdersPlacedTotal)
	})
}
