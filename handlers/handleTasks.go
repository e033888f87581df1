package handlers

import (
	"net/http"

	"hookvault/scheduler"
	"hookvault/types"
)

// TaskView 队列任务的展示形式
type TaskView struct {
	Address     types.Pubkey `json:"address"`
	ID          uint16       `json:"id"`
	Trigger     string       `json:"trigger"`
	Due         bool         `json:"due"`
	Description string       `json:"description"`
	QueuedAt    int64        `json:"queued_at"`
	Accounts    int          `json:"accounts"`
	RentRefund  types.Pubkey `json:"rent_refund"`
}

func newTaskView(addr types.Pubkey, t *scheduler.Task, now int64) TaskView {
	v := TaskView{
		Address:     addr,
		ID:          t.ID,
		Trigger:     t.Trigger.String(),
		Due:         now > 0 && t.Trigger.Due(now),
		Description: t.Description,
		QueuedAt:    t.QueuedAt,
		RentRefund:  t.RentRefund,
	}
	if t.Transaction != nil {
		v.Accounts = len(t.Transaction.Accounts)
	}
	return v
}

// QueueView 任务队列的展示形式
type QueueView struct {
	UpdateAuthority types.Pubkey `json:"update_authority"`
	Name            string       `json:"name"`
	Capacity        uint16       `json:"capacity"`
	TaskIDs         []uint32     `json:"task_ids"`
}

func newQueueView(q *scheduler.TaskQueue) QueueView {
	return QueueView{UpdateAuthority: q.UpdateAuthority, Name: q.Name, Capacity: q.Capacity, TaskIDs: q.TaskIDs.ToArray()}
}

// TasksResponse 任务列表响应
type TasksResponse struct {
	Queue types.Pubkey `json:"queue"`
	Tasks []TaskView   `json:"tasks"`
	Total int          `json:"total"`
}

// 处理任务列表 /tasks[?queue=name]
func (hm *HandlerManager) HandleTasks(w http.ResponseWriter, r *http.Request) {
	queue := hm.queue
	if name := r.URL.Query().Get("queue"); name != "" {
		queue = scheduler.TaskQueueAddress(name)
	}
	if queue.IsZero() {
		hm.fail(w, "tasks", "missing queue", http.StatusBadRequest)
		return
	}
	tasks, err := scheduler.ListTasks(hm.exec, queue)
	if err != nil {
		hm.fail(w, "tasks", err.Error(), http.StatusInternalServerError)
		return
	}
	now := hm.exec.Now().Unix()
	resp := TasksResponse{Queue: queue, Tasks: make([]TaskView, 0, len(tasks))}
	for _, d := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskView(d.Address, d.Task, now))
	}
	resp.Total = len(resp.Tasks)
	writeJSON(w, http.StatusOK, resp)
}
