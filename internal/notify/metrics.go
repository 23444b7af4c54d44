package notify

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"kasirtoko/backend/internal/domain"
)

// Metrics counts events by kind and accumulates committed revenue.
type Metrics struct {
	events  *prometheus.CounterVec
	revenue prometheus.Counter
	profit  prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_events_total",
			Help:      "Count of checkout engine events by kind.",
		}, []string{"kind"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_revenue_rupiah_total",
			Help:      "Sum of committed receipt totals in rupiah.",
		}),
		profit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_profit_rupiah_total",
			Help:      "Sum of committed receipt profit in rupiah.",
		}),
	}
	if err := reg.Register(m.events); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Errorf("register events counter: %w", err))
		}
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			m.events = existing
		}
	}
	m.revenue = registerCounter(reg, m.revenue)
	m.profit = registerCounter(reg, m.profit)
	return m
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Errorf("register counter: %w", err))
		}
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing
		}
	}
	return c
}

func (m *Metrics) Emit(_ context.Context, event domain.Event) {
	m.events.WithLabelValues(string(event.Kind)).Inc()
	if event.Kind != domain.EventTransactionCommitted {
		return
	}
	// Profit can be negative when items are sold below cost; counters only go up.
	if event.Total > 0 {
		m.revenue.Add(float64(event.Total))
	}
	if event.Profit > 0 {
		m.profit.Add(float64(event.Profit))
	}
}
