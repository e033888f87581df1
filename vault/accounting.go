package vault

import (
	"fmt"

	"hookvault/token"
	"hookvault/types"
	"hookvault/vm"
)

// ========== 存取记账 ==========

// deposit 只记账，资产由同一笔交易里配对的 transfer_checked 转入
func (p *Program) deposit(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	member, cfgAddr, recordAddr := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	if _, err := loadConfigAt(ctx, cfgAddr); err != nil {
		return err
	}
	rec, err := loadMemberRecord(ctx, member, recordAddr)
	if err != nil {
		return err
	}
	if rec.AmountDeposited, err = vm.CheckedAdd(rec.AmountDeposited, args.amount); err != nil {
		return err
	}
	if err := ctx.SetData(recordAddr, rec.Marshal()); err != nil {
		return err
	}
	ctx.Log("deposit %s by %s", token.FormatAmount(args.amount, Decimals), member)
	return nil
}

// withdraw 以配置地址签名，授权成员作为代理从持仓账户转出 amount
func (p *Program) withdraw(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 4); err != nil {
		return err
	}
	member, cfgAddr, recordAddr, holding := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey
	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if holding != cfg.Holding {
		return fmt.Errorf("%w: holding %s", ErrAccountMismatch, holding)
	}
	rec, err := loadMemberRecord(ctx, member, recordAddr)
	if err != nil {
		return err
	}
	if args.amount > rec.AmountDeposited {
		return fmt.Errorf("%w: %d > %d", ErrInsufficientDeposit, args.amount, rec.AmountDeposited)
	}

	approve := token.Approve(holding, member, cfgAddr, args.amount)
	if err := ctx.InvokeSigned(approve, withBump(configSeeds(), cfg.Bump)); err != nil {
		return err
	}

	if rec.AmountDeposited, err = vm.CheckedSub(rec.AmountDeposited, args.amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientDeposit, err)
	}
	if err := ctx.SetData(recordAddr, rec.Marshal()); err != nil {
		return err
	}
	ctx.Log("withdraw of %s approved for %s", token.FormatAmount(args.amount, Decimals), member)
	return nil
}
