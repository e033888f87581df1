package stats

import (
	"sort"
	"sync"
	"time"
)

// LatencySummary 单个操作的耗时分位
type LatencySummary struct {
	Count uint64        `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// window 环形样本窗口；count/max 覆盖全部历史
type window struct {
	samples []time.Duration
	next    int
	full    bool
	count   uint64
	max     time.Duration
}

func (w *window) add(d time.Duration) {
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.count++
	if d > w.max {
		w.max = d
	}
}

func (w *window) live() []time.Duration {
	if w.full {
		return w.samples
	}
	return w.samples[:w.next]
}

func (w *window) clear() {
	w.next, w.full, w.count, w.max = 0, false, 0, 0
}

// LatencyRecorder 固定容量的耗时记录器，nil 接收者上的调用都是空操作
type LatencyRecorder struct {
	mu       sync.Mutex
	capacity int
	windows  map[string]*window
}

func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity <= 0 {
		capacity = 2048
	}
	return &LatencyRecorder{capacity: capacity, windows: make(map[string]*window)}
}

func (r *LatencyRecorder) Record(name string, d time.Duration) {
	if r == nil || name == "" {
		return
	}
	if d < 0 {
		d = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[name]
	if !ok {
		w = &window{samples: make([]time.Duration, r.capacity)}
		r.windows[name] = w
	}
	w.add(d)
}

// Snapshot 各操作的分位统计；reset=true 时清空窗口，用于区间监控
func (r *LatencyRecorder) Snapshot(reset bool) map[string]LatencySummary {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]LatencySummary, len(r.windows))
	for name, w := range r.windows {
		live := w.live()
		if len(live) > 0 {
			sorted := append([]time.Duration(nil), live...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			var total time.Duration
			for _, d := range sorted {
				total += d
			}
			out[name] = LatencySummary{
				Count: w.count,
				Mean:  total / time.Duration(len(sorted)),
				P50:   percentile(sorted, 0.50),
				P95:   percentile(sorted, 0.95),
				P99:   percentile(sorted, 0.99),
				Max:   w.max,
			}
		}
		if reset {
			w.clear()
		}
	}
	return out
}

// percentile 最近秩法，sorted 必须非空且升序
func percentile(sorted []time.Duration, p float64) time.Duration {
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
