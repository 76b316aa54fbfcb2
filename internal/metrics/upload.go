package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fieldsnap/internal/queue"
)

const namespace = "fieldsnap"

// UploadMetrics records transfer and drain activity. A nil *UploadMetrics,
// or one built with a nil registerer, records nothing.
type UploadMetrics struct {
	transfers *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     prometheus.Counter
	exhausted prometheus.Counter
	drains    *prometheus.CounterVec
}

// NewUploadMetrics registers the upload metrics on the provided registerer.
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	if reg == nil {
		return &UploadMetrics{}
	}
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_total",
		Help:      "Upload attempts by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transfer_duration_seconds",
		Help:      "Duration of upload attempts in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	bytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Bytes written to the object store.",
	})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_exhausted_total",
		Help:      "Items that used their whole automatic retry budget.",
	})
	drains := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drain_passes_total",
		Help:      "Drain passes by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transfers, duration, bytes, exhausted, drains)
	return &UploadMetrics{
		transfers: transfers,
		duration:  duration,
		bytes:     bytes,
		exhausted: exhausted,
		drains:    drains,
	}
}

// ObserveTransfer records one upload attempt.
func (m *UploadMetrics) ObserveTransfer(success bool, size int, elapsed time.Duration) {
	if m == nil || m.transfers == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
		m.bytes.Add(float64(size))
	}
	m.transfers.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncExhausted counts an item whose retry budget ran out.
func (m *UploadMetrics) IncExhausted() {
	if m == nil || m.exhausted == nil {
		return
	}
	m.exhausted.Inc()
}

// IncDrain counts a drain pass. outcome is "completed" or a skip reason.
func (m *UploadMetrics) IncDrain(outcome string) {
	if m == nil || m.drains == nil {
		return
	}
	m.drains.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RegisterQueueDepth exposes per-status item counts, read from counts at
// scrape time.
func RegisterQueueDepth(reg prometheus.Registerer, counts func() queue.Counts) {
	if reg == nil || counts == nil {
		return
	}
	reg.MustRegister(&queueCollector{
		counts: counts,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_items"),
			"Queue items by status.",
			[]string{"status"}, nil,
		),
		exhausted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_items_exhausted"),
			"Failed items with no automatic retry budget left.",
			nil, nil,
		),
	})
}

type queueCollector struct {
	counts    func() queue.Counts
	desc      *prometheus.Desc
	exhausted *prometheus.Desc
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
	ch <- c.exhausted
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.counts()
	values := map[queue.Status]int{
		queue.StatusPending:   counts.Pending,
		queue.StatusUploading: counts.Uploading,
		queue.StatusUploaded:  counts.Uploaded,
		queue.StatusFailed:    counts.Failed,
	}
	for _, status := range queue.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(values[status]), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.GaugeValue, float64(counts.Exhausted))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
