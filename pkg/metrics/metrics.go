package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	gometrics "github.com/samuel/go-metrics/metrics"
)

// MetricsCollector keeps labelled counters and unbiased histograms in a
// go-metrics registry. Counters are registered as "<name>/<labels>",
// latencies as "<name>.latency_us" and sizes as "<name>.bytes".
type MetricsCollector struct {
	registry  gometrics.Registry
	counters  map[string]map[string]*gometrics.Counter
	latencies map[string]gometrics.Histogram
	sizes     map[string]gometrics.Histogram
	mutex     sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(gometrics.NewRegistry())
}

// NewMetricsCollectorWithRegistry registers every metric in registry.
func NewMetricsCollectorWithRegistry(registry gometrics.Registry) *MetricsCollector {
	return &MetricsCollector{
		registry:  registry,
		counters:  make(map[string]map[string]*gometrics.Counter),
		latencies: make(map[string]gometrics.Histogram),
		sizes:     make(map[string]gometrics.Histogram),
	}
}

func (mc *MetricsCollector) Registry() gometrics.Registry {
	return mc.registry
}

// labelKey renders labels as "k1:v1,k2:v2" in key order.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+labels[k])
	}
	return strings.Join(parts, ",")
}

func (mc *MetricsCollector) counter(name, label string) *gometrics.Counter {
	mc.mutex.RLock()
	c := mc.counters[name][label]
	mc.mutex.RUnlock()
	if c != nil {
		return c
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]*gometrics.Counter)
	}
	if c = mc.counters[name][label]; c == nil {
		c = gometrics.NewCounter()
		mc.counters[name][label] = c
		mc.registry.Add(name+"/"+label, c)
	}
	return c
}

func (mc *MetricsCollector) histogram(set map[string]gometrics.Histogram, name, suffix string) gometrics.Histogram {
	mc.mutex.RLock()
	h := set[name]
	mc.mutex.RUnlock()
	if h != nil {
		return h
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if h = set[name]; h == nil {
		h = gometrics.NewUnbiasedHistogram()
		set[name] = h
		mc.registry.Add(name+suffix, h)
	}
	return h
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.counter(name, labelKey(labels)).Inc(1)
}

func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.histogram(mc.latencies, name, ".latency_us").Update(duration.Nanoseconds() / 1e3)
}

func (mc *MetricsCollector) ObserveSize(name string, size float64) {
	mc.histogram(mc.sizes, name, ".bytes").Update(int64(size))
}

func (mc *MetricsCollector) GetCounters() map[string]map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	counters := make(map[string]map[string]int64, len(mc.counters))
	for name, labels := range mc.counters {
		counters[name] = make(map[string]int64, len(labels))
		for label, c := range labels {
			counters[name][label] = int64(c.Count())
		}
	}
	return counters
}

func (mc *MetricsCollector) GetLatencies() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, h := range mc.latencies {
		dist := h.Distribution()
		if dist.Count == 0 {
			continue
		}
		result[name] = map[string]float64{
			"count":  float64(dist.Count),
			"avg_ms": dist.Sum / float64(dist.Count) / 1e3,
			"max_ms": dist.Max / 1e3,
		}
	}
	return result
}

func (mc *MetricsCollector) GetSizes() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, h := range mc.sizes {
		dist := h.Distribution()
		if dist.Count == 0 {
			continue
		}
		result[name] = map[string]float64{
			"count":     float64(dist.Count),
			"avg_bytes": dist.Sum / float64(dist.Count),
			"max_bytes": dist.Max,
		}
	}
	return result
}
