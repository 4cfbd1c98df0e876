// Package metrics exports vending counters and inventory levels for Prometheus.
// Metrics is a telemetry sink, it receives the same events as remote tele.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/vendsim/internal/report"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
	tele_config "github.com/temoto/vendsim/tele/config"
)

const namespace = "vendsim"

type Metrics struct {
	reg *prometheus.Registry

	vends         *prometheus.CounterVec
	revenue       prometheus.Counter
	failures      *prometheus.CounterVec
	sessions      prometheus.Counter
	errors        prometheus.Counter
	coinsAccepted *prometheus.CounterVec
	coinsRejected prometheus.Counter
}

var _ tele_api.Teler = &Metrics{} // compile-time interface test

func New(inv report.Snapshoter) *Metrics {
	self := &Metrics{
		reg: prometheus.NewRegistry(),
		vends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "vends_total", Help: "Completed purchases.",
		}, []string{"product"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "revenue_pence_total", Help: "Sum of prices of completed purchases.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "failures_total", Help: "Transactions ended with refund.",
		}, []string{"code"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total", Help: "Transactions started by product selection.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Logged machine errors.",
		}),
		coinsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "coins_accepted_total", Help: "Inserted coins by kind.",
		}, []string{"coin"}),
		coinsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "coins_rejected_total", Help: "Inserted coins of unknown kind.",
		}),
	}
	self.reg.MustRegister(
		self.vends,
		self.revenue,
		self.failures,
		self.sessions,
		self.errors,
		self.coinsAccepted,
		self.coinsRejected,
	)
	if inv != nil {
		self.reg.MustRegister(NewInventoryCollector(inv))
	}
	return self
}

func (self *Metrics) Registry() *prometheus.Registry { return self.reg }

func (self *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(self.reg, promhttp.HandlerOpts{})
}

func (self *Metrics) Init(context.Context, *log2.Log, tele_config.Config) error { return nil }
func (self *Metrics) Close()                                                    {}

func (self *Metrics) State(s tele_api.State) {
	if s == tele_api.StateClient {
		self.sessions.Inc()
	}
}

func (self *Metrics) Error(error) { self.errors.Inc() }

// StatModify runs fun on empty Stat, the result is the increment.
func (self *Metrics) StatModify(fun func(*tele_api.Stat)) {
	var delta tele_api.Stat
	delta.Locked_Reset()
	fun(&delta)
	for name, n := range delta.CoinsAccepted {
		self.coinsAccepted.WithLabelValues(name).Add(float64(n))
	}
	if delta.CoinsRejected != 0 {
		self.coinsRejected.Add(float64(delta.CoinsRejected))
	}
}

func (self *Metrics) Transaction(t tele_api.Transaction) {
	self.vends.WithLabelValues(t.Product).Inc()
	if t.Price > 0 {
		self.revenue.Add(float64(t.Price))
	}
}

func (self *Metrics) Failure(f tele_api.Failure) {
	self.failures.WithLabelValues(f.Code).Inc()
}

// InventoryCollector reads stock levels on each scrape.
type InventoryCollector struct {
	inv        report.Snapshoter
	stock      *prometheus.Desc
	price      *prometheus.Desc
	coins      *prometheus.Desc
	coinsValue *prometheus.Desc
}

func NewInventoryCollector(inv report.Snapshoter) *InventoryCollector {
	return &InventoryCollector{
		inv:        inv,
		stock:      prometheus.NewDesc(namespace+"_product_stock", "Product units in machine.", []string{"product"}, nil),
		price:      prometheus.NewDesc(namespace+"_product_price_pence", "Product price.", []string{"product"}, nil),
		coins:      prometheus.NewDesc(namespace+"_coin_count", "Coins in machine by kind.", []string{"coin"}, nil),
		coinsValue: prometheus.NewDesc(namespace+"_coin_value_pence", "Total value of coins in machine.", nil, nil),
	}
}

func (self *InventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.stock
	ch <- self.price
	ch <- self.coins
	ch <- self.coinsValue
}

func (self *InventoryCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range self.inv.Products() {
		ch <- prometheus.MustNewConstMetric(self.stock, prometheus.GaugeValue, float64(p.Stock), p.Name)
		ch <- prometheus.MustNewConstMetric(self.price, prometheus.GaugeValue, float64(p.Price), p.Name)
	}
	for _, cq := range self.inv.Coins() {
		ch <- prometheus.MustNewConstMetric(self.coins, prometheus.GaugeValue, float64(cq.Qty), cq.Kind.String())
	}
	ch <- prometheus.MustNewConstMetric(self.coinsValue, prometheus.GaugeValue, float64(self.inv.CoinsTotal()))
}
