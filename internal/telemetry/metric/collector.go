package metric

import "github.com/prometheus/client_golang/prometheus"

// WorkerSource reports how many workers hold a registered channel.
type WorkerSource interface {
	Len() int
}

var registeredWorkersDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "registered_workers"),
	"Workers with a registered private channel.",
	nil, nil,
)

// Collector reads the registry size at scrape time.
type Collector struct {
	src WorkerSource
}

// NewCollector creates a collector for src.
func NewCollector(src WorkerSource) *Collector {
	return &Collector{src: src}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- registeredWorkersDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(registeredWorkersDesc, prometheus.GaugeValue, float64(c.src.Len()))
}
