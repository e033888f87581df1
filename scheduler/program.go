package scheduler

import (
	"fmt"

	"hookvault/types"
	"hookvault/vm"
)

// Program 通用延迟任务调度器：入队时保存编译好的描述符，触发后由任意 crank 重放
type Program struct{}

func NewProgram() *Program { return &Program{} }

func (p *Program) ID() types.Pubkey { return ProgramID }

func (p *Program) Name() string { return "scheduler" }

func (p *Program) Process(ctx *vm.InvokeContext, accounts []types.AccountMeta, data []byte) error {
	if len(data) < types.DiscriminatorSize {
		return vm.ErrInvalidInstruction
	}
	var kind [types.DiscriminatorSize]byte
	copy(kind[:], data)
	body := data[types.DiscriminatorSize:]

	switch kind {
	case ixInitTaskQueue:
		return p.initTaskQueue(ctx, accounts, body)
	case ixAddQueueAuthority:
		return p.addQueueAuthority(ctx, accounts)
	case ixQueueTask:
		args, err := parseQueueTaskArgs(body)
		if err != nil {
			return err
		}
		return p.queueTask(ctx, accounts, args)
	case ixRunTask:
		return p.runTask(ctx, accounts)
	case ixDequeueTask:
		return p.dequeueTask(ctx, accounts)
	default:
		return ErrUnknownInstruction
	}
}

func need(accounts []types.AccountMeta, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: need %d, got %d", vm.ErrNotEnoughAccounts, n, len(accounts))
	}
	return nil
}

func loadQueue(ctx *vm.InvokeContext, addr types.Pubkey) (*TaskQueue, error) {
	acc, err := ctx.Account(addr)
	if err != nil {
		return nil, err
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: queue %s", vm.ErrInvalidAccountData, addr)
	}
	return UnmarshalTaskQueue(acc.Data)
}

func saveQueue(ctx *vm.InvokeContext, addr types.Pubkey, q *TaskQueue) error {
	data, err := q.Marshal()
	if err != nil {
		return err
	}
	return ctx.SetData(addr, data)
}

func loadTask(ctx *vm.InvokeContext, queueAddr, taskAddr, refund types.Pubkey) (*Task, error) {
	taskAcc, err := ctx.Account(taskAddr)
	if err != nil {
		return nil, err
	}
	if taskAcc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: task %s", vm.ErrInvalidAccountData, taskAddr)
	}
	task, err := UnmarshalTask(taskAcc.Data)
	if err != nil {
		return nil, err
	}
	if task.TaskQueue != queueAddr {
		return nil, ErrWrongQueue
	}
	if task.RentRefund != refund {
		return nil, ErrRentRefundMismatch
	}
	return task, nil
}

// closeTask 关闭任务账户，租金退回 refund，释放任务 ID
func closeTask(ctx *vm.InvokeContext, queueAddr, taskAddr, refund types.Pubkey, id uint16) error {
	if err := ctx.CloseAccount(taskAddr, refund); err != nil {
		return err
	}
	q, err := loadQueue(ctx, queueAddr)
	if err != nil {
		return err
	}
	q.TaskIDs.Remove(uint32(id))
	return saveQueue(ctx, queueAddr, q)
}

// ========== 队列管理 ==========

func (p *Program) initTaskQueue(ctx *vm.InvokeContext, accounts []types.AccountMeta, body []byte) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	payer, authority, queueAddr := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", vm.ErrMissingSignature, authority)
	}

	q := NewTaskQueue(authority, "", 0)
	err := types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			q.Name = string(f.Raw)
		case 2:
			q.Capacity, err = f.Uint16()
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", vm.ErrInvalidInstruction, err)
	}
	if q.Capacity == 0 {
		return fmt.Errorf("%w: zero capacity", vm.ErrInvalidInstruction)
	}

	data, err := q.Marshal()
	if err != nil {
		return err
	}
	got, _, err := ctx.CreatePDA(payer, taskQueueSeeds(q.Name), data)
	if err != nil {
		return err
	}
	if got != queueAddr {
		return fmt.Errorf("%w: queue %s", ErrAddressMismatch, queueAddr)
	}
	ctx.Log("task queue %q created with capacity %d", q.Name, q.Capacity)
	return nil
}

func (p *Program) addQueueAuthority(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 5); err != nil {
		return err
	}
	payer, authority, queueAddr, queueAuthority, recordAddr :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey

	q, err := loadQueue(ctx, queueAddr)
	if err != nil {
		return err
	}
	if q.UpdateAuthority != authority || !ctx.IsSigner(authority) {
		return ErrUnauthorized
	}
	rec := &TaskQueueAuthority{TaskQueue: queueAddr, QueueAuthority: queueAuthority}
	got, _, err := ctx.CreatePDA(payer, queueAuthoritySeeds(queueAddr, queueAuthority), rec.Marshal())
	if err != nil {
		return err
	}
	if got != recordAddr {
		return fmt.Errorf("%w: queue authority record", ErrAddressMismatch)
	}
	return nil
}

// ========== 入队 ==========

func (p *Program) queueTask(ctx *vm.InvokeContext, accounts []types.AccountMeta, args *QueueTaskArgs) error {
	if err := need(accounts, 5); err != nil {
		return err
	}
	payer, queueAuthority, recordAddr, queueAddr, taskAddr :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey
	remaining := accounts[5:]

	if !ctx.IsSigner(queueAuthority) {
		return fmt.Errorf("%w: queue authority %s", vm.ErrMissingSignature, queueAuthority)
	}
	if recordAddr != TaskQueueAuthorityAddress(queueAddr, queueAuthority) {
		return ErrQueueAuthority
	}
	recAcc, ok, err := ctx.Lookup(recordAddr)
	if err != nil {
		return err
	}
	if !ok || recAcc.Owner != ProgramID {
		return ErrQueueAuthority
	}
	rec, err := UnmarshalTaskQueueAuthority(recAcc.Data)
	if err != nil {
		return err
	}
	if rec.TaskQueue != queueAddr || rec.QueueAuthority != queueAuthority {
		return ErrQueueAuthority
	}

	if len(args.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: %d > %d", ErrDescriptionTooLong, len(args.Description), MaxDescriptionLen)
	}
	if err := checkMirror(args, remaining); err != nil {
		return err
	}

	q, err := loadQueue(ctx, queueAddr)
	if err != nil {
		return err
	}
	if q.TaskIDs.Contains(uint32(args.ID)) {
		return fmt.Errorf("%w: %d", ErrTaskIDInUse, args.ID)
	}
	if _, exists, err := ctx.Lookup(taskAddr); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %d", ErrTaskIDInUse, args.ID)
	}
	if q.Queued() >= q.Capacity {
		return ErrQueueFull
	}

	task := &Task{
		TaskQueue:   queueAddr,
		ID:          args.ID,
		Trigger:     args.Trigger,
		Transaction: args.Transaction,
		CrankReward: args.CrankReward,
		FreeTasks:   args.FreeTasks,
		Description: args.Description,
		RentRefund:  payer,
		QueuedAt:    ctx.Now(),
	}
	got, _, err := ctx.CreatePDA(payer, taskSeeds(queueAddr, args.ID), task.Marshal())
	if err != nil {
		return err
	}
	if got != taskAddr {
		return fmt.Errorf("%w: task %d", ErrAddressMismatch, args.ID)
	}
	if task.CrankReward != nil {
		if err := ctx.TransferLamports(payer, taskAddr, *task.CrankReward); err != nil {
			return err
		}
	}

	q.TaskIDs.Add(uint32(args.ID))
	if err := saveQueue(ctx, queueAddr, q); err != nil {
		return err
	}
	ctx.Log("queued task %d %q trigger=%s", task.ID, task.Description, task.Trigger)
	return nil
}

// checkMirror 附带账户必须与描述符账户表逐一对应，可写位与下标区间一致
func checkMirror(args *QueueTaskArgs, remaining []types.AccountMeta) error {
	want := args.Transaction.RemainingAccounts()
	if len(remaining) != len(want) {
		return fmt.Errorf("%w: %d accounts, descriptor has %d", ErrDescriptorMismatch, len(remaining), len(want))
	}
	for i := range want {
		if remaining[i].Pubkey != want[i].Pubkey || remaining[i].IsWritable != want[i].IsWritable {
			return fmt.Errorf("%w: index %d", ErrDescriptorMismatch, i)
		}
	}
	return nil
}

// ========== 执行 ==========

func (p *Program) runTask(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 4); err != nil {
		return err
	}
	crank, queueAddr, taskAddr, refund := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey
	remaining := accounts[4:]

	task, err := loadTask(ctx, queueAddr, taskAddr, refund)
	if err != nil {
		return err
	}
	if !task.Trigger.Due(ctx.Now()) {
		return fmt.Errorf("%w: %s at %d", ErrTriggerNotReady, task.Trigger, ctx.Now())
	}

	ct := task.Transaction
	if len(remaining) != len(ct.Accounts) {
		return fmt.Errorf("%w: %d accounts, descriptor has %d", ErrDescriptorMismatch, len(remaining), len(ct.Accounts))
	}
	for i, pk := range ct.Accounts {
		if remaining[i].Pubkey != pk {
			return fmt.Errorf("%w: index %d", ErrDescriptorMismatch, i)
		}
	}
	ixs, err := ct.Decompile()
	if err != nil {
		return err
	}
	for i, ix := range ixs {
		if err := ctx.InvokeSigned(ix, ct.SignerSeeds...); err != nil {
			return fmt.Errorf("task %d instruction %d: %w", task.ID, i, err)
		}
	}

	if task.CrankReward != nil {
		if err := ctx.TransferLamports(taskAddr, crank, *task.CrankReward); err != nil {
			return err
		}
	}
	if err := closeTask(ctx, queueAddr, taskAddr, refund, task.ID); err != nil {
		return err
	}
	ctx.Log("ran task %d %q", task.ID, task.Description)
	return nil
}

// ========== 出队 ==========

// dequeueTask 不执行直接关闭任务，用于清理重放总是失败的任务
func (p *Program) dequeueTask(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 5); err != nil {
		return err
	}
	authority, recordAddr, queueAddr, taskAddr, refund :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey

	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", vm.ErrMissingSignature, authority)
	}
	q, err := loadQueue(ctx, queueAddr)
	if err != nil {
		return err
	}
	if q.UpdateAuthority != authority {
		if recordAddr != TaskQueueAuthorityAddress(queueAddr, authority) {
			return ErrDequeueAuthority
		}
		recAcc, ok, err := ctx.Lookup(recordAddr)
		if err != nil {
			return err
		}
		if !ok || recAcc.Owner != ProgramID {
			return ErrDequeueAuthority
		}
	}

	task, err := loadTask(ctx, queueAddr, taskAddr, refund)
	if err != nil {
		return err
	}
	if err := closeTask(ctx, queueAddr, taskAddr, refund, task.ID); err != nil {
		return err
	}
	ctx.Log("dequeued task %d %q", task.ID, task.Description)
	return nil
}
