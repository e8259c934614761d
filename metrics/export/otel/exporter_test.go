package otel

import (
	"context"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:   make(map[goSession.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goSession.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// valueOf returns the data point of name whose attributes include kv, or the
// only data point when kv is empty.
func valueOf(rm metricdata.ResourceMetrics, name string, kv ...attribute.KeyValue) (int64, bool) {
	match := func(set attribute.Set) bool {
		for _, want := range kv {
			got, ok := set.Value(want.Key)
			if !ok || got.Emit() != want.Value.Emit() {
				return false
			}
		}
		return true
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("gosession-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterGroupsCountersByOutcome(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:        3,
				goSession.MetricLoginWrongMethod:    2,
				goSession.MetricRefreshUserVanished: 1,
				goSession.MetricSessionIssued:       7,
				goSession.MetricOAuthStarted:        5,
				goSession.MetricOAuthSuccess:        4,
				goSession.MetricRedirectRejected:    1,
			},
		},
		dropped: 6,
	}
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	cases := []struct {
		name string
		kv   []attribute.KeyValue
		want int64
	}{
		{LoginsName, []attribute.KeyValue{outcomeKey.String("success")}, 3},
		{LoginsName, []attribute.KeyValue{outcomeKey.String("wrong_method")}, 2},
		{LoginsName, []attribute.KeyValue{outcomeKey.String("rate_limited")}, 0},
		{RefreshesName, []attribute.KeyValue{outcomeKey.String("user_vanished")}, 1},
		{SessionsIssuedName, nil, 7},
		{OAuthFlowsName, []attribute.KeyValue{providerStageKey.String("started")}, 5},
		{OAuthFlowsName, []attribute.KeyValue{providerStageKey.String("success")}, 4},
		{RedirectsName, nil, 1},
		{AuditDroppedName, nil, 6},
	}
	for _, tc := range cases {
		got, ok := valueOf(rm, tc.name, tc.kv...)
		if !ok {
			t.Fatalf("%s %v not collected", tc.name, tc.kv)
		}
		if got != tc.want {
			t.Fatalf("%s %v = %d, want %d", tc.name, tc.kv, got, tc.want)
		}
	}
}

func TestExporterRefreshLatencyBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {2, 1, 0, 0, 0, 0, 0, 1},
			},
		},
	}
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	want := map[string]int64{"0.005": 2, "0.01": 3, "0.5": 3, "+Inf": 4}
	for le, v := range want {
		got, ok := valueOf(rm, RefreshBucketsName, bucketBoundKey.String(le))
		if !ok || got != v {
			t.Fatalf("bucket le=%s = %d (found %v), want %d", le, got, ok, v)
		}
	}
	if got, _ := valueOf(rm, RefreshSamplesName); got != 4 {
		t.Fatalf("samples = %d, want 4", got)
	}
}

func TestExporterCloseStopsCollection(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: goSession.MetricsSnapshot{
		Counters: map[goSession.MetricID]uint64{goSession.MetricSignOut: 1},
	}}
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := valueOf(collect(t, reader), SignOutsName); ok {
		t.Fatal("expected no observations after Close")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{goSession.MetricLoginSuccess: 1},
		},
	}
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goSession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
