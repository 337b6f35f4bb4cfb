package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegionMetrics Prometheus-метрики менеджера регионов
type RegionMetrics struct {
	liveRegions        prometheus.Gauge
	generationAttempts prometheus.Counter
	generationFailures prometheus.Counter
	regionsDestroyed   prometheus.Counter
	cleanupDuration    prometheus.Histogram
}

// NewRegionMetrics создает метрики и регистрирует их в reg, если он задан
func NewRegionMetrics(reg prometheus.Registerer) *RegionMetrics {
	m := &RegionMetrics{
		liveRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region",
			Name:      "live_regions",
			Help:      "Количество живых регионов.",
		}),
		generationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region",
			Name:      "generation_attempts_total",
			Help:      "Попыток генерации регионов.",
		}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region",
			Name:      "generation_failures_total",
			Help:      "Регионов, не сгенерированных за все попытки.",
		}),
		regionsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region",
			Name:      "destroyed_total",
			Help:      "Уничтоженных регионов.",
		}),
		cleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region",
			Name:      "cleanup_duration_seconds",
			Help:      "Длительность очистки простаивающих регионов.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.liveRegions, m.generationAttempts, m.generationFailures, m.regionsDestroyed, m.cleanupDuration)
	}
	return m
}
