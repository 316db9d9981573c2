package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Creations counts link creation attempts by outcome: created, invalid,
// rejected_suspicious, duplicate_code, exhausted.
var Creations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linkvault",
	Name:      "link_creations_total",
	Help:      "Link creation attempts by outcome.",
}, []string{"result"})

// Resolutions counts short code resolutions by outcome: cache_hit,
// store_hit, not_found, expired.
var Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linkvault",
	Name:      "link_resolutions_total",
	Help:      "Short code resolutions by outcome.",
}, []string{"result"})
