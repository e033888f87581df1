package vault

import (
	"fmt"

	"hookvault/compiler"
	"hookvault/scheduler"
	"hookvault/types"
	"hookvault/vm"
)

// ========== 根轮换 ==========

// schedule 暂存新根，并把 apply 编译成描述符提交给调度器。
// 再次 schedule 会覆盖尚未生效的根。
func (p *Program) schedule(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 6); err != nil {
		return err
	}
	admin, cfgAddr, queueAuthority, queue :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[4].Pubkey

	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if err := requireAdmin(ctx, cfg, admin); err != nil {
		return err
	}
	if args.root.IsZero() {
		return ErrZeroRoot
	}
	qa, qaBump := QueueAuthorityAddress()
	if queueAuthority != qa {
		return fmt.Errorf("%w: queue authority %s", ErrAccountMismatch, queueAuthority)
	}

	cfg.PendingRoot = args.root
	if err := ctx.SetData(cfgAddr, cfg.Marshal()); err != nil {
		return err
	}

	ct, remaining, err := compiler.Compile([]types.Instruction{Apply()}, nil)
	if err != nil {
		return err
	}
	task := &scheduler.QueueTaskArgs{
		ID:          args.taskID,
		Trigger:     args.trigger,
		Transaction: ct,
		Description: ApplyDescription,
	}
	submit := scheduler.QueueTask(admin, qa, queue, task, remaining)
	if err := ctx.InvokeSigned(submit, withBump(queueAuthoritySeeds(), qaBump)); err != nil {
		return err
	}
	ctx.Log("root %s staged as task %d (%s)", args.root, args.taskID, args.trigger)
	return nil
}

// apply 任何人都可调用；生效暂存的根并清空暂存
func (p *Program) apply(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 1); err != nil {
		return err
	}
	cfgAddr := accounts[0].Pubkey
	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if !cfg.Staged() {
		return ErrNoPendingRoot
	}
	cfg.ActiveRoot = cfg.PendingRoot
	cfg.PendingRoot = types.Hash{}
	if err := ctx.SetData(cfgAddr, cfg.Marshal()); err != nil {
		return err
	}
	ctx.Log("active root is now %s", cfg.ActiveRoot)
	return nil
}
