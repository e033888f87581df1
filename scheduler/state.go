package scheduler

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"hookvault/compiler"
	"hookvault/types"
)

// MaxDescriptionLen 任务描述最大字节数
const MaxDescriptionLen = 40

var (
	taskQueueDiscriminator          = types.AccountDiscriminator("TaskQueue")
	taskQueueAuthorityDiscriminator = types.AccountDiscriminator("TaskQueueAuthority")
	taskDiscriminator               = types.AccountDiscriminator("Task")
)

// ========== Trigger ==========

type TriggerKind uint8

const (
	TriggerKindNow       TriggerKind = 0
	TriggerKindTimestamp TriggerKind = 1
)

// Trigger 任务何时可被执行
type Trigger struct {
	Kind      TriggerKind
	Timestamp int64 // unix 秒，仅 TriggerKindTimestamp
}

func TriggerNow() Trigger          { return Trigger{Kind: TriggerKindNow} }
func TriggerAt(unix int64) Trigger { return Trigger{Kind: TriggerKindTimestamp, Timestamp: unix} }

// Due 在 now 时刻是否已触发
func (t Trigger) Due(now int64) bool {
	switch t.Kind {
	case TriggerKindNow:
		return true
	case TriggerKindTimestamp:
		return now >= t.Timestamp
	default:
		return false
	}
}

func (t Trigger) String() string {
	if t.Kind == TriggerKindTimestamp {
		return fmt.Sprintf("timestamp(%d)", t.Timestamp)
	}
	return "now"
}

func (t Trigger) Marshal() []byte {
	return types.NewWireWriter().Uint(1, uint64(t.Kind)).Int(2, t.Timestamp).Finish()
}

func UnmarshalTrigger(b []byte) (Trigger, error) {
	var t Trigger
	err := types.WalkWire(b, func(f types.WireField) error {
		switch f.Num {
		case 1:
			k, err := f.Uint8()
			if err != nil {
				return err
			}
			t.Kind = TriggerKind(k)
		case 2:
			t.Timestamp = f.Int()
		}
		return nil
	})
	if err != nil {
		return Trigger{}, err
	}
	if t.Kind != TriggerKindNow && t.Kind != TriggerKindTimestamp {
		return Trigger{}, fmt.Errorf("%w: kind %d", ErrInvalidTrigger, t.Kind)
	}
	return t, nil
}

// ========== TaskQueue ==========

// TaskQueue 一个任务队列；只有登记过的队列授权者可以入队
type TaskQueue struct {
	UpdateAuthority types.Pubkey
	Name            string
	Capacity        uint16
	// TaskIDs 已入队、尚未执行的任务 ID
	TaskIDs *roaring.Bitmap
}

func NewTaskQueue(authority types.Pubkey, name string, capacity uint16) *TaskQueue {
	return &TaskQueue{UpdateAuthority: authority, Name: name, Capacity: capacity, TaskIDs: roaring.New()}
}

// Queued 当前排队的任务数
func (q *TaskQueue) Queued() uint16 {
	if q.TaskIDs == nil {
		return 0
	}
	return uint16(q.TaskIDs.GetCardinality())
}

func (q *TaskQueue) Marshal() ([]byte, error) {
	w := types.NewWireWriter(taskQueueDiscriminator).
		Pubkey(1, q.UpdateAuthority).
		String(2, q.Name).
		Uint(3, uint64(q.Capacity))
	if q.TaskIDs != nil && !q.TaskIDs.IsEmpty() {
		raw, err := q.TaskIDs.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("encode task ids: %w", err)
		}
		w.Bytes(4, raw)
	}
	return w.Finish(), nil
}

func UnmarshalTaskQueue(b []byte) (*TaskQueue, error) {
	body, err := types.SplitDiscriminator(b, taskQueueDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode task queue: %w", err)
	}
	q := &TaskQueue{TaskIDs: roaring.New()}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			q.UpdateAuthority, err = f.Pubkey()
		case 2:
			q.Name = string(f.Raw)
		case 3:
			q.Capacity, err = f.Uint16()
		case 4:
			err = q.TaskIDs.UnmarshalBinary(f.Raw)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode task queue: %w", err)
	}
	return q, nil
}

// ========== TaskQueueAuthority ==========

// TaskQueueAuthority 允许 QueueAuthority 向 TaskQueue 入队
type TaskQueueAuthority struct {
	TaskQueue      types.Pubkey
	QueueAuthority types.Pubkey
}

func (a *TaskQueueAuthority) Marshal() []byte {
	return types.NewWireWriter(taskQueueAuthorityDiscriminator).
		Pubkey(1, a.TaskQueue).
		Pubkey(2, a.QueueAuthority).
		Finish()
}

func UnmarshalTaskQueueAuthority(b []byte) (*TaskQueueAuthority, error) {
	body, err := types.SplitDiscriminator(b, taskQueueAuthorityDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode queue authority: %w", err)
	}
	a := &TaskQueueAuthority{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			a.TaskQueue, err = f.Pubkey()
		case 2:
			a.QueueAuthority, err = f.Pubkey()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode queue authority: %w", err)
	}
	return a, nil
}

// ========== Task ==========

// Task 一个待执行的延迟调用
type Task struct {
	TaskQueue   types.Pubkey
	ID          uint16
	Trigger     Trigger
	Transaction *compiler.CompiledTransaction
	CrankReward *uint64 // nil 表示不额外奖励
	FreeTasks   uint8
	Description string
	RentRefund  types.Pubkey
	QueuedAt    int64
}

func (t *Task) Marshal() []byte {
	w := types.NewWireWriter(taskDiscriminator).
		Pubkey(1, t.TaskQueue).
		Uint(2, uint64(t.ID)).
		Bytes(3, t.Trigger.Marshal()).
		Bytes(4, t.Transaction.Marshal())
	if t.CrankReward != nil {
		w.Uint(5, *t.CrankReward)
	}
	return w.Uint(6, uint64(t.FreeTasks)).
		String(7, t.Description).
		Pubkey(8, t.RentRefund).
		Int(9, t.QueuedAt).
		Finish()
}

func UnmarshalTask(b []byte) (*Task, error) {
	body, err := types.SplitDiscriminator(b, taskDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	t := &Task{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			t.TaskQueue, err = f.Pubkey()
		case 2:
			t.ID, err = f.Uint16()
		case 3:
			t.Trigger, err = UnmarshalTrigger(f.Raw)
		case 4:
			t.Transaction, err = compiler.Unmarshal(f.Raw)
		case 5:
			reward := f.Varint
			t.CrankReward = &reward
		case 6:
			t.FreeTasks, err = f.Uint8()
		case 7:
			t.Description = string(f.Raw)
		case 8:
			t.RentRefund, err = f.Pubkey()
		case 9:
			t.QueuedAt = f.Int()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if t.Transaction == nil {
		return nil, fmt.Errorf("decode task: %w: missing descriptor", types.ErrInvalidWireData)
	}
	return t, nil
}

// IsTask 账户数据是否是 Task 记录
func IsTask(data []byte) bool {
	_, err := types.SplitDiscriminator(data, taskDiscriminator)
	return err == nil
}
