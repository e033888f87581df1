package scheduler

import (
	"fmt"

	"hookvault/compiler"
	"hookvault/types"
	"hookvault/vm"
)

var (
	ixInitTaskQueue     = types.Discriminator("scheduler", "init_task_queue")
	ixAddQueueAuthority = types.Discriminator("scheduler", "add_queue_authority")
	ixQueueTask         = types.Discriminator("scheduler", "queue_task")
	ixRunTask           = types.Discriminator("scheduler", "run_task")
	ixDequeueTask       = types.Discriminator("scheduler", "dequeue_task")
)

// QueueTaskArgs 入队参数
type QueueTaskArgs struct {
	ID          uint16
	Trigger     Trigger
	Transaction *compiler.CompiledTransaction
	CrankReward *uint64
	FreeTasks   uint8
	Description string
}

func (a *QueueTaskArgs) marshal() []byte {
	w := types.NewWireWriter(ixQueueTask).
		Uint(1, uint64(a.ID)).
		Bytes(2, a.Trigger.Marshal()).
		Bytes(3, a.Transaction.Marshal())
	if a.CrankReward != nil {
		w.Uint(4, *a.CrankReward)
	}
	return w.Uint(5, uint64(a.FreeTasks)).String(6, a.Description).Finish()
}

func parseQueueTaskArgs(body []byte) (*QueueTaskArgs, error) {
	a := &QueueTaskArgs{}
	err := types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			a.ID, err = f.Uint16()
		case 2:
			a.Trigger, err = UnmarshalTrigger(f.Raw)
		case 3:
			a.Transaction, err = compiler.Unmarshal(f.Raw)
		case 4:
			reward := f.Varint
			a.CrankReward = &reward
		case 5:
			a.FreeTasks, err = f.Uint8()
		case 6:
			a.Description = string(f.Raw)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vm.ErrInvalidInstruction, err)
	}
	if a.Transaction == nil {
		return nil, fmt.Errorf("%w: missing descriptor", vm.ErrInvalidInstruction)
	}
	return a, nil
}

// InitTaskQueue accounts: [payer(s,w), update_authority(s), task_queue(w)]
func InitTaskQueue(payer, updateAuthority types.Pubkey, name string, capacity uint16) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(payer),
			types.ReadOnlySigner(updateAuthority),
			types.Writable(TaskQueueAddress(name)),
		},
		Data: types.NewWireWriter(ixInitTaskQueue).String(1, name).Uint(2, uint64(capacity)).Finish(),
	}
}

// AddQueueAuthority accounts: [payer(s,w), update_authority(s), task_queue, queue_authority, task_queue_authority(w)]
func AddQueueAuthority(payer, updateAuthority, queue, queueAuthority types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(payer),
			types.ReadOnlySigner(updateAuthority),
			types.ReadOnly(queue),
			types.ReadOnly(queueAuthority),
			types.Writable(TaskQueueAuthorityAddress(queue, queueAuthority)),
		},
		Data: types.NewWireWriter(ixAddQueueAuthority).Finish(),
	}
}

// QueueTask accounts: [payer(s,w), queue_authority(s), task_queue_authority, task_queue(w), task(w), remaining...]
// remaining 必须与描述符账户表逐一对应
func QueueTask(payer, queueAuthority, queue types.Pubkey, args *QueueTaskArgs, remaining []types.AccountMeta) types.Instruction {
	accounts := []types.AccountMeta{
		types.WritableSigner(payer),
		types.ReadOnlySigner(queueAuthority),
		types.ReadOnly(TaskQueueAuthorityAddress(queue, queueAuthority)),
		types.Writable(queue),
		types.Writable(TaskAddress(queue, args.ID)),
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  append(accounts, remaining...),
		Data:      args.marshal(),
	}
}

// RunTask accounts: [crank(s,w), task_queue(w), task(w), rent_refund(w), remaining...]
func RunTask(crank, taskAddr types.Pubkey, task *Task) types.Instruction {
	accounts := []types.AccountMeta{
		types.WritableSigner(crank),
		types.Writable(task.TaskQueue),
		types.Writable(taskAddr),
		types.Writable(task.RentRefund),
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  append(accounts, task.Transaction.RemainingAccounts()...),
		Data:      types.NewWireWriter(ixRunTask).Finish(),
	}
}

// DequeueTask accounts: [authority(s), task_queue_authority, task_queue(w), task(w), rent_refund(w)]
// authority 为队列 update authority 或登记过的队列授权者
func DequeueTask(authority, taskAddr types.Pubkey, task *Task) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnlySigner(authority),
			types.ReadOnly(TaskQueueAuthorityAddress(task.TaskQueue, authority)),
			types.Writable(task.TaskQueue),
			types.Writable(taskAddr),
			types.Writable(task.RentRefund),
		},
		Data: types.NewWireWriter(ixDequeueTask).Finish(),
	}
}
