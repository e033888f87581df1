package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"hookvault/logs"
	"hookvault/scheduler"
	"hookvault/stats"
	"hookvault/types"
	"hookvault/vm"
)

// HandlerManager 管理所有HTTP处理器及其依赖
type HandlerManager struct {
	exec      *vm.Executor
	queueName string
	queue     types.Pubkey
	port      string

	// 统计相关字段
	Stats   *stats.Stats
	latency *stats.LatencyRecorder
}

// NewHandlerManager 创建新的处理器管理器；queueName 为空时 /tasks 只能按参数查询
func NewHandlerManager(exec *vm.Executor, queueName, port string, latency *stats.LatencyRecorder) *HandlerManager {
	hm := &HandlerManager{
		exec:      exec,
		queueName: queueName,
		port:      port,
		Stats:     stats.NewStats(),
		latency:   latency,
	}
	if queueName != "" {
		hm.queue = scheduler.TaskQueueAddress(queueName)
	}
	return hm
}

// RegisterRoutes 注册所有路由
func (hm *HandlerManager) RegisterRoutes(mux *http.ServeMux) {
	// 交易
	mux.HandleFunc("/tx", hm.timed("tx", hm.HandleTx))
	mux.HandleFunc("/simulate", hm.timed("simulate", hm.HandleSimulate))

	// 查询
	mux.HandleFunc("/account", hm.timed("account", hm.HandleGetAccount))
	mux.HandleFunc("/receipt", hm.timed("receipt", hm.HandleGetReceipt))
	mux.HandleFunc("/vault/config", hm.timed("vault_config", hm.HandleVaultConfig))
	mux.HandleFunc("/vault/member", hm.timed("vault_member", hm.HandleVaultMember))
	mux.HandleFunc("/tasks", hm.timed("tasks", hm.HandleTasks))
	mux.HandleFunc("/status", hm.timed("status", hm.HandleStatus))
}

// timed 记录调用次数与处理耗时
func (hm *HandlerManager) timed(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hm.Stats.RecordAPICall(name)
		start := time.Now()
		fn(w, r)
		hm.latency.Record("api_"+name, time.Since(start))
	}
}

func (hm *HandlerManager) fail(w http.ResponseWriter, api string, msg string, code int) {
	hm.Stats.RecordFailure(api)
	http.Error(w, msg, code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Debug("[handlers] encode response: %v", err)
	}
}

// pubkeyParam 读取 base58 公钥查询参数
func pubkeyParam(r *http.Request, name string) (types.Pubkey, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return types.Pubkey{}, false
	}
	pk, err := types.ParsePubkey(s)
	if err != nil {
		return types.Pubkey{}, false
	}
	return pk, true
}
