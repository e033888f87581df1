package handlers

import (
	"fmt"
	"net/http"

	"hookvault/scheduler"
	"hookvault/stats"
)

// StatusResponse 节点状态
type StatusResponse struct {
	Status   string                          `json:"status"`
	Info     string                          `json:"info"`
	Now      int64                           `json:"now"`
	Programs []string                        `json:"programs"`
	APICalls []stats.APICall                 `json:"api_calls"`
	Latency  map[string]stats.LatencySummary `json:"latency,omitempty"`
	Queue    *stats.QueueStat                `json:"queue,omitempty"`
}

// 处理状态查询
func (hm *HandlerManager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:   "ok",
		Info:     fmt.Sprintf("Server is running on port %s", hm.port),
		Now:      hm.exec.Now().Unix(),
		Programs: hm.exec.Registry().List(),
		APICalls: hm.Stats.GetAPICallStats(),
		Latency:  hm.latency.Snapshot(false),
	}
	if !hm.queue.IsZero() {
		if qs, ok := hm.queueStat(); ok {
			resp.Queue = &qs
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (hm *HandlerManager) queueStat() (stats.QueueStat, bool) {
	acc, found, err := hm.exec.Account(hm.queue)
	if err != nil || !found || acc.Owner != scheduler.ProgramID {
		return stats.QueueStat{}, false
	}
	q, err := scheduler.UnmarshalTaskQueue(acc.Data)
	if err != nil {
		return stats.QueueStat{}, false
	}
	due, err := scheduler.DueTasks(hm.exec, hm.queue)
	if err != nil {
		return stats.QueueStat{}, false
	}
	return stats.NewQueueStat(hm.queueName, hm.queue.String(), int(q.Queued()), int(q.Capacity), len(due)), true
}
