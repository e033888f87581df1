package stats

// QueueStat 任务队列占用情况
type QueueStat struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Queued   int     `json:"queued"`
	Capacity int     `json:"capacity"`
	Due      int     `json:"due"`   // 已触发、等待 crank 的任务数
	Usage    float64 `json:"usage"` // queued/capacity
}

// NewQueueStat 创建并计算使用率
func NewQueueStat(name, address string, queued, capacity, due int) QueueStat {
	usage := 0.0
	if capacity > 0 {
		usage = float64(queued) / float64(capacity)
	}
	return QueueStat{
		Name:     name,
		Address:  address,
		Queued:   queued,
		Capacity: capacity,
		Due:      due,
		Usage:    usage,
	}
}
