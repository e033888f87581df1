package stats

import (
	"sort"
	"sync"
)

// Stats 节点对外接口的调用计数
type Stats struct {
	mu            sync.RWMutex
	apiCallCounts map[string]uint64
	failures      map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		apiCallCounts: make(map[string]uint64),
		failures:      make(map[string]uint64),
	}
}

// 记录API调用
func (s *Stats) RecordAPICall(apiName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiCallCounts[apiName]++
}

// RecordFailure 记录一次失败的调用（交易被拒、请求非法等）
func (s *Stats) RecordFailure(apiName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[apiName]++
}

// APICall 单个接口的计数
type APICall struct {
	Name     string `json:"name"`
	Calls    uint64 `json:"calls"`
	Failures uint64 `json:"failures"`
}

// 获取API调用统计，按名称排序
func (s *Stats) GetAPICallStats() []APICall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]APICall, 0, len(s.apiCallCounts))
	for name, n := range s.apiCallCounts {
		out = append(out, APICall{Name: name, Calls: n, Failures: s.failures[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
