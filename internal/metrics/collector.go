// Package metrics exports store statistics to Prometheus.
//
// The collector reads a fresh store.Stats snapshot on every scrape and holds
// no counters of its own.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/arbor/internal/middleware"
	"github.com/dshills/arbor/internal/store"
)

// DefaultNamespace prefixes metric names when none is configured.
const DefaultNamespace = "arbor"

const (
	labelKind    = "kind"
	labelOutcome = "outcome"

	outcomeDelivered = "delivered"
	outcomeError     = "error"
	outcomePanic     = "panic"
)

// StatsSource is satisfied by *store.Store.
type StatsSource interface {
	Stats() store.Stats
}

type collector struct {
	stats func() store.Stats

	opsDesc         *prometheus.Desc
	failuresDesc    *prometheus.Desc
	emittedDesc     *prometheus.Desc
	deliveriesDesc  *prometheus.Desc
	listenersDesc   *prometheus.Desc
	pendingDesc     *prometheus.Desc
	middlewareDesc  *prometheus.Desc
	dispatchesDesc  *prometheus.Desc
	invocationsDesc *prometheus.Desc
	mwFailuresDesc  *prometheus.Desc
	ticksDesc       *prometheus.Desc
}

// NewCollector returns a prometheus.Collector over src.
func NewCollector(namespace string, src StatsSource) prometheus.Collector {
	return newCollector(namespace, src.Stats)
}

func newCollector(namespace string, statFn func() store.Stats) *collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &collector{
		stats: statFn,

		opsDesc:         desc("store", "operations_total", "Settled store operations", labelKind),
		failuresDesc:    desc("store", "operation_failures_total", "Store operations settled with an error", labelKind),
		emittedDesc:     desc("events", "emitted_total", "Events emitted"),
		deliveriesDesc:  desc("events", "deliveries_total", "Listener invocations by outcome", labelOutcome),
		listenersDesc:   desc("events", "listeners", "Registered listeners"),
		pendingDesc:     desc("events", "pending", "Deliveries waiting for the next drain"),
		middlewareDesc:  desc("middleware", "entries", "Registered middleware including terminal handlers"),
		dispatchesDesc:  desc("middleware", "dispatches_total", "Operations dispatched through the chain"),
		invocationsDesc: desc("middleware", "invocations_total", "Middleware handler invocations"),
		mwFailuresDesc:  desc("middleware", "failures_total", "Middleware handlers that failed", labelOutcome),
		ticksDesc:       desc("tick", "queue_depth", "Tasks waiting on the tick queue"),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opsDesc
	ch <- c.failuresDesc
	ch <- c.emittedDesc
	ch <- c.deliveriesDesc
	ch <- c.listenersDesc
	ch <- c.pendingDesc
	ch <- c.middlewareDesc
	ch <- c.dispatchesDesc
	ch <- c.invocationsDesc
	ch <- c.mwFailuresDesc
	ch <- c.ticksDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()

	for _, k := range middleware.AllKinds() {
		ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue, float64(st.Ops[k]), string(k))
		ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(st.Failures[k]), string(k))
	}

	ev := st.Events
	ch <- prometheus.MustNewConstMetric(c.emittedDesc, prometheus.CounterValue, float64(ev.Emitted))
	ch <- prometheus.MustNewConstMetric(c.deliveriesDesc, prometheus.CounterValue, float64(ev.Delivered), outcomeDelivered)
	ch <- prometheus.MustNewConstMetric(c.deliveriesDesc, prometheus.CounterValue, float64(ev.HandlerErrors), outcomeError)
	ch <- prometheus.MustNewConstMetric(c.deliveriesDesc, prometheus.CounterValue, float64(ev.HandlerPanics), outcomePanic)
	ch <- prometheus.MustNewConstMetric(c.listenersDesc, prometheus.GaugeValue, float64(ev.Listeners))
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(ev.Pending))

	mw := st.Middleware
	ch <- prometheus.MustNewConstMetric(c.middlewareDesc, prometheus.GaugeValue, float64(mw.Entries))
	ch <- prometheus.MustNewConstMetric(c.dispatchesDesc, prometheus.CounterValue, float64(mw.Dispatches))
	ch <- prometheus.MustNewConstMetric(c.invocationsDesc, prometheus.CounterValue, float64(mw.Invocations))
	ch <- prometheus.MustNewConstMetric(c.mwFailuresDesc, prometheus.CounterValue, float64(mw.Errors), outcomeError)
	ch <- prometheus.MustNewConstMetric(c.mwFailuresDesc, prometheus.CounterValue, float64(mw.Panics), outcomePanic)

	ch <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.GaugeValue, float64(st.Ticks))
}

// NewRegistry returns a registry holding the store collector plus the Go
// runtime and process collectors.
func NewRegistry(namespace string, src StatsSource) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	cs := []prometheus.Collector{
		NewCollector(namespace, src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
