// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_deliveries_total",
		Help: "Record-store deliveries by kind and result",
	}, []string{"kind", "result"}) // kind=success|failure, result=delivered|skipped|failed

	tokenCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_token_cache_total",
		Help: "Credential cache lookups by result",
	}, []string{"result"}) // result=hit|miss|issued|error
)

// IncDelivery records one delivery attempt.
func IncDelivery(kind, result string) {
	deliveries.WithLabelValues(kind, result).Inc()
}

// IncTokenCache records a credential cache event.
func IncTokenCache(result string) {
	tokenCache.WithLabelValues(result).Inc()
}
