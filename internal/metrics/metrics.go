// Package metrics exposes the farm loop's counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds all prometheus metric collectors. A nil *Collectors is valid
// and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	Requests      *prometheus.CounterVec
	Selections    *prometheus.CounterVec
	Cycles        *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	FarmingActive prometheus.Gauge
	Balance       prometheus.Gauge
}

// New creates the collectors on a private registry together with the Go runtime collectors.
func New(namespace string) *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API calls by path and outcome",
		}, []string{"path", "outcome"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_selections_total",
			Help:      "Outbound path chosen per call (primary, public, direct)",
		}, []string{"route"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Farm cycles by result",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by result",
		}, []string{"result"}),
		FarmingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "farming_active",
			Help:      "Last observed farming state (1 = active, 0 = idle or unknown)",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance",
			Help:      "Last numeric balance reported by the API",
		}),
	}

	reg.MustRegister(
		c.Requests,
		c.Selections,
		c.Cycles,
		c.Notifications,
		c.FarmingActive,
		c.Balance,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry for /metrics.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) ObserveRequest(path, outcome string) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(path, outcome).Inc()
}

func (c *Collectors) ObserveSelection(route string) {
	if c == nil {
		return
	}
	c.Selections.WithLabelValues(route).Inc()
}

func (c *Collectors) ObserveCycle(result string) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(result).Inc()
}

func (c *Collectors) ObserveNotification(result string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(result).Inc()
}

func (c *Collectors) SetFarmingActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.FarmingActive.Set(1)
	} else {
		c.FarmingActive.Set(0)
	}
}

func (c *Collectors) SetBalance(v float64) {
	if c == nil {
		return
	}
	c.Balance.Set(v)
}
