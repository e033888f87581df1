package scheduler

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"hookvault/logs"
	"hookvault/types"
	"hookvault/vm"
)

// Node crank 依赖的节点能力
type Node interface {
	Execute(tx *types.Transaction) (*vm.Receipt, error)
	OwnedAccounts(owner types.Pubkey) ([]vm.KeyedAccount, error)
	Now() time.Time
}

// DueTask 一个已触发、等待执行的任务
type DueTask struct {
	Address types.Pubkey
	Task    *Task
}

// DefaultMaxAttempts 一个任务连续失败多少次后放弃重试
const DefaultMaxAttempts = 3

// attempt 某个任务（按地址和入队时间区分）的连续失败次数
type attempt struct {
	queuedAt int64
	failures int
}

// Crank 周期性扫描一个队列，把已触发的任务提交为 run_task 交易。
// 失败记日志并在下一轮重试；连续失败 MaxAttempts 次后用 dequeue_task 关闭任务，
// signer 无权出队时只停止重试。
type Crank struct {
	node     Node
	queue    types.Pubkey
	signer   *types.Keypair
	interval time.Duration
	nonce    uint64

	MaxAttempts int

	attempts map[types.Pubkey]*attempt
	done     chan struct{}
}

func NewCrank(node Node, queue types.Pubkey, signer *types.Keypair, interval time.Duration) *Crank {
	return &Crank{
		node:        node,
		queue:       queue,
		signer:      signer,
		interval:    interval,
		nonce:       uint64(time.Now().UnixNano()),
		MaxAttempts: DefaultMaxAttempts,
		attempts:    make(map[types.Pubkey]*attempt),
	}
}

// Start 在后台循环执行 Tick，ctx 取消后退出；用 Done 等待退出
func (c *Crank) Start(ctx context.Context) {
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		logs.Info("[Crank] driving queue %s every %v as %s", c.queue, c.interval, c.signer.Pubkey())
		for {
			select {
			case <-ticker.C:
				if _, err := c.Tick(); err != nil {
					logs.Warn("[Crank] tick: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Done 后台循环退出后关闭；未 Start 时返回已关闭的 channel
func (c *Crank) Done() <-chan struct{} {
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

func (c *Crank) submit(ix types.Instruction) error {
	tx := types.NewTransaction(atomic.AddUint64(&c.nonce, 1), ix)
	if err := tx.Sign(c.signer); err != nil {
		return err
	}
	_, err := c.node.Execute(tx)
	return err
}

// Tick 执行一轮，返回成功执行的任务数
func (c *Crank) Tick() (int, error) {
	due, err := DueTasks(c.node, c.queue)
	if err != nil {
		return 0, err
	}
	c.prune(due)

	ran := 0
	for _, d := range due {
		a := c.attempts[d.Address]
		if a != nil && a.failures >= c.MaxAttempts {
			continue
		}
		err := c.submit(RunTask(c.signer.Pubkey(), d.Address, d.Task))
		if err == nil {
			delete(c.attempts, d.Address)
			logs.Info("[Crank] ran task %d (%s)", d.Task.ID, d.Task.Description)
			ran++
			continue
		}
		if a == nil {
			a = &attempt{queuedAt: d.Task.QueuedAt}
			c.attempts[d.Address] = a
		}
		a.failures++
		if a.failures < c.MaxAttempts {
			logs.Warn("[Crank] task %d (%s) failed (%d/%d), will retry: %v",
				d.Task.ID, d.Task.Description, a.failures, c.MaxAttempts, err)
			continue
		}
		logs.Warn("[Crank] task %d (%s) failed %d times, dequeuing: %v", d.Task.ID, d.Task.Description, a.failures, err)
		if err := c.submit(DequeueTask(c.signer.Pubkey(), d.Address, d.Task)); err != nil {
			logs.Warn("[Crank] dequeue task %d: %v; giving up on it", d.Task.ID, err)
			continue
		}
		delete(c.attempts, d.Address)
	}
	return ran, nil
}

// prune 丢弃已不在队列中（或已被同 ID 新任务替换）的失败计数
func (c *Crank) prune(due []DueTask) {
	live := make(map[types.Pubkey]int64, len(due))
	for _, d := range due {
		live[d.Address] = d.Task.QueuedAt
	}
	for addr, a := range c.attempts {
		if queuedAt, ok := live[addr]; !ok || queuedAt != a.queuedAt {
			delete(c.attempts, addr)
		}
	}
}

// DueTasks 列出队列中已触发的任务，按任务 ID 排序
func DueTasks(node Node, queue types.Pubkey) ([]DueTask, error) {
	tasks, err := ListTasks(node, queue)
	if err != nil {
		return nil, err
	}
	now := node.Now().Unix()
	due := tasks[:0]
	for _, t := range tasks {
		if t.Task.Trigger.Due(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

// ListTasks 列出队列中的全部任务
func ListTasks(node Node, queue types.Pubkey) ([]DueTask, error) {
	owned, err := node.OwnedAccounts(ProgramID)
	if err != nil {
		return nil, err
	}
	var out []DueTask
	for _, ka := range owned {
		if !IsTask(ka.Account.Data) {
			continue
		}
		task, err := UnmarshalTask(ka.Account.Data)
		if err != nil {
			logs.Warn("[Crank] skip undecodable task %s: %v", ka.Address, err)
			continue
		}
		if task.TaskQueue != queue {
			continue
		}
		out = append(out, DueTask{Address: ka.Address, Task: task})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task.ID < out[j].Task.ID })
	return out, nil
}
