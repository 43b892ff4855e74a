package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics Prometheus-метрики сохранения и восстановления сцен.
// Все методы безопасны для nil-получателя: движок работает и без метрик.
//
// Метрики:
// * worldscene_entities_saved_total{kind}
// * worldscene_entities_restored_total{kind}
// * worldscene_entities_spawned_total{kind}
// * worldscene_entities_skipped_total{op,reason}
// * worldscene_operation_duration_seconds{op}
type EngineMetrics struct {
	saved    *prometheus.CounterVec
	restored *prometheus.CounterVec
	spawned  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewEngineMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewEngineMetrics(reg prometheus.Registerer) (*EngineMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &EngineMetrics{
		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldscene",
			Name:      "entities_saved_total",
			Help:      "Число объектов, записанных в хранилище состояния.",
		}, []string{"kind"}),
		restored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldscene",
			Name:      "entities_restored_total",
			Help:      "Число объектов, состояние которых восстановлено.",
		}, []string{"kind"}),
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldscene",
			Name:      "entities_spawned_total",
			Help:      "Число объектов, созданных из шаблонов при восстановлении.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldscene",
			Name:      "entities_skipped_total",
			Help:      "Число пропущенных объектов по причинам.",
		}, []string{"op", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "worldscene",
			Name:      "operation_duration_seconds",
			Help:      "Длительность сохранения и восстановления сцены.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{m.saved, m.restored, m.spawned, m.skipped, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *EngineMetrics) EntitySaved(kind string) {
	if m != nil {
		m.saved.WithLabelValues(kind).Inc()
	}
}

func (m *EngineMetrics) EntityRestored(kind string) {
	if m != nil {
		m.restored.WithLabelValues(kind).Inc()
	}
}

func (m *EngineMetrics) EntitySpawned(kind string) {
	if m != nil {
		m.spawned.WithLabelValues(kind).Inc()
	}
}

func (m *EngineMetrics) EntitySkipped(op, reason string) {
	if m != nil {
		m.skipped.WithLabelValues(op, reason).Inc()
	}
}

func (m *EngineMetrics) ObserveDuration(op string, d time.Duration) {
	if m != nil {
		m.duration.WithLabelValues(op).Observe(d.Seconds())
	}
}
