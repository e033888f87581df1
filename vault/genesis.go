package vault

import (
	"fmt"

	"hookvault/token"
	"hookvault/types"
	"hookvault/vm"
)

// ========== 部署 ==========

// initialize 创建配置、治理资产、持仓账户，并为配置地址自身建立准入记录，
// 使以金库为 authority 的转账也能通过钩子
func (p *Program) initialize(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 5); err != nil {
		return err
	}
	admin, cfgAddr, cfgAdmission, mint, holding :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey

	if !ctx.IsSigner(admin) {
		return fmt.Errorf("%w: admin %s", vm.ErrMissingSignature, admin)
	}
	if args.root.IsZero() {
		return ErrZeroRoot
	}
	if holding != HoldingAddress(mint) {
		return fmt.Errorf("%w: holding %s", ErrAccountMismatch, holding)
	}

	want, bump := ConfigAddress()
	if cfgAddr != want {
		return fmt.Errorf("%w: config %s", ErrAccountMismatch, cfgAddr)
	}
	cfg := &Config{
		Admin:      admin,
		Mint:       mint,
		Holding:    holding,
		ActiveRoot: args.root,
		Bump:       bump,
	}
	if _, _, err := ctx.CreatePDA(admin, configSeeds(), cfg.Marshal()); err != nil {
		return err
	}

	if want, _ := AdmissionAddress(cfgAddr); cfgAdmission != want {
		return fmt.Errorf("%w: config admission %s", ErrAccountMismatch, cfgAdmission)
	}
	if err := createAdmission(ctx, admin, cfgAddr); err != nil {
		return err
	}

	if err := ctx.Invoke(token.InitializeMint(admin, mint, admin, Decimals, ProgramID)); err != nil {
		return err
	}
	if err := ctx.Invoke(token.InitializeAccount(admin, cfgAddr, mint)); err != nil {
		return err
	}
	if args.amount > 0 {
		if err := ctx.Invoke(token.MintTo(mint, holding, admin, args.amount)); err != nil {
			return err
		}
	}
	ctx.Log("vault initialized admin=%s mint=%s supply=%s", admin, mint, token.FormatAmount(args.amount, Decimals))
	return nil
}

// registerPolicyMetadata 为治理资产登记钩子的额外账户列表，每个资产一次
func (p *Program) registerPolicyMetadata(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 4); err != nil {
		return err
	}
	payer, cfgAddr, mint, metadata := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey

	cfg, err := loadConfigAt(ctx, cfgAddr)
	if err != nil {
		return err
	}
	if cfg.Mint != mint {
		return fmt.Errorf("%w: %s", ErrInvalidMint, mint)
	}
	list := PolicyMetaList()
	got, _, err := ctx.CreatePDA(payer, [][]byte{[]byte(token.ExtraAccountMetasSeed), mint.Bytes()}, list.Marshal())
	if err != nil {
		return err
	}
	if got != metadata {
		return fmt.Errorf("%w: metadata %s", ErrAccountMismatch, metadata)
	}
	ctx.Log("registered %d extra account(s) for %s", len(list.Metas), mint)
	return nil
}

// updateRoot 管理员立即替换生效根，不影响待生效根
func (p *Program) updateRoot(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 2); err != nil {
		return err
	}
	admin, cfgAddr := accounts[0].Pubkey, accounts[1].Pubkey
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
	cfg.ActiveRoot = args.root
	ctx.Log("active root updated to %s", args.root)
	return ctx.SetData(cfgAddr, cfg.Marshal())
}
