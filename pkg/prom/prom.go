package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemRedemption = "redemption"
	SystemTransfer   = "transfer"
	SystemPayout     = "payout"
	SystemERP        = "erp"
)

const (
	MetricRedemptionsTotal      = "total"
	MetricTransfersTotal        = "total"
	MetricPayoutReconciledTotal = "reconciled_total"
	MetricPayoutReconcileRun    = "reconcile_run_duration_seconds"
	MetricERPSyncTotal          = "sync_total"
	MetricERPQueueMessages      = "queue_messages"
)

type kind int

const (
	kindCounterVec kind = iota
	kindHistogram
	kindGaugeVec
)

type definition struct {
	kind      kind
	subsystem string
	name      string
	help      string
	labels    []string
}

var definitions = []definition{
	{kindCounterVec, SystemRedemption, MetricRedemptionsTotal, "Coupon redemption attempts by channel and result.", []string{"channel", "result"}},
	{kindCounterVec, SystemTransfer, MetricTransfersTotal, "Points transfers by route and result.", []string{"route", "result"}},
	{kindCounterVec, SystemPayout, MetricPayoutReconciledTotal, "Payouts moved to a terminal status.", []string{"status"}},
	{kindHistogram, SystemPayout, MetricPayoutReconcileRun, "Duration of one reconciliation sweep.", nil},
	{kindCounterVec, SystemERP, MetricERPSyncTotal, "Order sync attempts against the ERP.", []string{"result"}},
	{kindGaugeVec, SystemERP, MetricERPQueueMessages, "Messages in the ERP sync stream by state.", []string{"state"}},
}

var (
	mu                  sync.RWMutex
	MetricSystemEnabled = false

	counterVecs = map[string]*prometheus.CounterVec{}
	histograms  = map[string]prometheus.Histogram{}
	gaugeVecs   = map[string]*prometheus.GaugeVec{}
)

func key(subsystem, name string) string {
	return subsystem + "_" + name
}

// Create registers every rewards metric under nameSpace with env and instance
// as constant labels. It may only be called once per process.
func Create(host string, env string, nameSpace string) error {
	mu.Lock()
	defer mu.Unlock()

	constLabels := prometheus.Labels{"env": env, "instance": host}
	for _, d := range definitions {
		var c prometheus.Collector
		switch d.kind {
		case kindCounterVec:
			v := prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: nameSpace, Subsystem: d.subsystem, Name: d.name, Help: d.help, ConstLabels: constLabels,
			}, d.labels)
			counterVecs[key(d.subsystem, d.name)] = v
			c = v
		case kindHistogram:
			v := prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: nameSpace, Subsystem: d.subsystem, Name: d.name, Help: d.help, ConstLabels: constLabels,
				Buckets: prometheus.DefBuckets,
			})
			histograms[key(d.subsystem, d.name)] = v
			c = v
		case kindGaugeVec:
			v := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: nameSpace, Subsystem: d.subsystem, Name: d.name, Help: d.help, ConstLabels: constLabels,
			}, d.labels)
			gaugeVecs[key(d.subsystem, d.name)] = v
			c = v
		}
		if err := prometheus.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", key(d.subsystem, d.name), err)
		}
	}
	MetricSystemEnabled = true
	return nil
}

// ListenAndServer serves the default registry on its own fasthttp engine.
func ListenAndServer(port string, url string) {
	s := xhttp.CreateServer()
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	logger.Info("[metrics-server] listening...", "addr", port, "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func addCounterVec(subsystem, name string, labelValues ...string) {
	mu.RLock()
	defer mu.RUnlock()
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counterVecs[key(subsystem, name)]; ok {
		v.WithLabelValues(labelValues...).Inc()
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncRedemption(channel, result string) {
	addCounterVec(SystemRedemption, MetricRedemptionsTotal, channel, result)
}

func IncTransfer(route, result string) {
	addCounterVec(SystemTransfer, MetricTransfersTotal, route, result)
}

func IncPayoutReconciled(status string) {
	addCounterVec(SystemPayout, MetricPayoutReconciledTotal, status)
}

func IncERPSync(result string) {
	addCounterVec(SystemERP, MetricERPSyncTotal, result)
}

func ObservePayoutReconcileRun(seconds float64) {
	mu.RLock()
	defer mu.RUnlock()
	if !MetricSystemEnabled {
		return
	}
	if h, ok := histograms[key(SystemPayout, MetricPayoutReconcileRun)]; ok {
		h.Observe(seconds)
	}
}

// SetERPQueue records the stream length and the messages delivered but not yet acked.
func SetERPQueue(total, pending int64) {
	mu.RLock()
	defer mu.RUnlock()
	if !MetricSystemEnabled {
		return
	}
	if g, ok := gaugeVecs[key(SystemERP, MetricERPQueueMessages)]; ok {
		g.WithLabelValues("total").Set(float64(total))
		g.WithLabelValues("pending").Set(float64(pending))
	}
}
