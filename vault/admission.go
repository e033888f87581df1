package vault

import (
	"fmt"

	"hookvault/token"
	"hookvault/types"
	"hookvault/utils/merkle"
	"hookvault/vm"
)

// ========== 准入 ==========

// join 成员凭默克尔证明加入白名单
func (p *Program) join(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	member, cfgAddr, recordAddr := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	if !ctx.IsSigner(member) {
		return fmt.Errorf("%w: %s", vm.ErrMissingSignature, member)
	}
	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if !merkle.Verify(merkle.HashLeaf(member), args.proof, cfg.ActiveRoot) {
		return ErrInvalidProof
	}
	if want, _ := AdmissionAddress(member); recordAddr != want {
		return fmt.Errorf("%w: admission record %s", ErrAccountMismatch, recordAddr)
	}
	if err := createAdmission(ctx, member, member); err != nil {
		return err
	}
	ctx.Log("member %s joined", member)
	return nil
}

func createAdmission(ctx *vm.InvokeContext, payer, member types.Pubkey) error {
	addr, bump := AdmissionAddress(member)
	if _, exists, err := ctx.Lookup(addr); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, member)
	}
	rec := &AdmissionRecord{Member: member, Bump: bump}
	_, _, err := ctx.CreatePDA(payer, admissionSeeds(member), rec.Marshal())
	return err
}

// revoke 管理员移除成员。记录无论存款多少都会关闭；未提走的存款先从持仓账户
// 转给管理员，租金退给管理员。
func (p *Program) revoke(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 6); err != nil {
		return err
	}
	admin, cfgAddr, recordAddr, holding, mint, adminToken :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey, accounts[5].Pubkey
	hookAccounts := accounts[6:]

	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if err := requireAdmin(ctx, cfg, admin); err != nil {
		return err
	}
	if args.member == cfgAddr {
		return fmt.Errorf("%w: the vault itself cannot be revoked", ErrAccountMismatch)
	}
	if want, _ := AdmissionAddress(args.member); recordAddr != want {
		return fmt.Errorf("%w: admission record %s", ErrAccountMismatch, recordAddr)
	}
	rec, ok, err := LookupAdmission(ctx.Lookup, args.member)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, args.member)
	}

	if rec.AmountDeposited > 0 {
		if holding != cfg.Holding || mint != cfg.Mint {
			return ErrAccountMismatch
		}
		sweep := token.TransferChecked(holding, mint, adminToken, cfgAddr, rec.AmountDeposited, Decimals, hookAccounts...)
		if err := ctx.InvokeSigned(sweep, withBump(configSeeds(), cfg.Bump)); err != nil {
			return err
		}
		ctx.Log("swept %s from %s", token.FormatAmount(rec.AmountDeposited, Decimals), args.member)
	}
	if err := ctx.CloseAccount(recordAddr, admin); err != nil {
		return err
	}
	ctx.Log("member %s revoked", args.member)
	return nil
}
