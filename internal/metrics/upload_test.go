package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"fieldsnap/internal/queue"
)

func TestUploadMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUploadMetrics(reg)
	m.ObserveTransfer(true, 1024, 250*time.Millisecond)
	m.ObserveTransfer(false, 0, 100*time.Millisecond)
	m.IncExhausted()
	m.IncDrain("completed")
	m.IncDrain("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchValue(mfs, "fieldsnap_transfers_total", "result", "success"); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got, err := fetchValue(mfs, "fieldsnap_transfers_total", "result", "failure"); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchValue(mfs, "fieldsnap_uploaded_bytes_total", "", ""); err != nil {
		t.Fatalf("fetch bytes: %v", err)
	} else if got != 1024 {
		t.Fatalf("expected 1024 bytes, got %f", got)
	}
	if got, err := fetchValue(mfs, "fieldsnap_retries_exhausted_total", "", ""); err != nil || got != 1 {
		t.Fatalf("expected exhausted=1, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "fieldsnap_drain_passes_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown outcome=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "fieldsnap_transfer_duration_seconds", "result", "success"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilUploadMetricsIsSafe(t *testing.T) {
	var m *UploadMetrics
	m.ObserveTransfer(true, 1, time.Second)
	m.IncExhausted()
	m.IncDrain("completed")

	unregistered := NewUploadMetrics(nil)
	unregistered.ObserveTransfer(false, 0, time.Second)
	unregistered.IncDrain("skipped_offline")
}

func TestQueueDepthReadsCountsAtScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	counts := queue.Counts{Total: 4, Pending: 2, Failed: 1, Uploaded: 1, Exhausted: 1}
	RegisterQueueDepth(reg, func() queue.Counts { return counts })

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, err := fetchValue(mfs, "fieldsnap_queue_items", "status", "pending"); err != nil || got != 2 {
		t.Fatalf("expected pending=2, got %f (%v)", got, err)
	}

	counts.Pending = 0
	counts.Uploaded = 3
	mfs, err = reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, err := fetchValue(mfs, "fieldsnap_queue_items", "status", "uploaded"); err != nil || got != 3 {
		t.Fatalf("expected uploaded=3, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "fieldsnap_queue_items_exhausted", "", ""); err != nil || got != 1 {
		t.Fatalf("expected exhausted=1, got %f (%v)", got, err)
	}
}

func fetchValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label != "" && !matchesLabel(metric.GetLabel(), label, value) {
			continue
		}
		if metric.GetCounter() != nil {
			return metric.GetCounter().GetValue(), nil
		}
		return metric.GetGauge().GetValue(), nil
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
