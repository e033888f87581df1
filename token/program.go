package token

import (
	"fmt"

	"hookvault/types"
	"hookvault/vm"
)

// Program 资产运行时：余额、授权与转账钩子
type Program struct{}

func NewProgram() *Program { return &Program{} }

func (p *Program) ID() types.Pubkey { return ProgramID }

func (p *Program) Name() string { return "token" }

func (p *Program) Process(ctx *vm.InvokeContext, accounts []types.AccountMeta, data []byte) error {
	if len(data) < types.DiscriminatorSize {
		return vm.ErrInvalidInstruction
	}
	var kind [types.DiscriminatorSize]byte
	copy(kind[:], data)
	args, err := parseArgs(kind, data[types.DiscriminatorSize:])
	if err != nil {
		return err
	}

	switch kind {
	case ixInitializeMint:
		return p.initializeMint(ctx, accounts, args)
	case ixInitializeAccount:
		return p.initializeAccount(ctx, accounts)
	case ixMintTo:
		return p.mintTo(ctx, accounts, args)
	case ixApprove:
		return p.approve(ctx, accounts, args)
	case ixTransferChecked:
		return p.transferChecked(ctx, accounts, args)
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

// ========== 读写 ==========

func loadMint(ctx *vm.InvokeContext, addr types.Pubkey) (*Mint, error) {
	acc, err := ctx.Account(addr)
	if err != nil {
		return nil, err
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: mint %s", ErrNotTokenAccount, addr)
	}
	return UnmarshalMint(acc.Data)
}

func loadTokenAccount(ctx *vm.InvokeContext, addr types.Pubkey) (*TokenAccount, error) {
	acc, err := ctx.Account(addr)
	if err != nil {
		return nil, err
	}
	if acc.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, addr)
	}
	return UnmarshalTokenAccount(acc.Data)
}

// ========== 指令 ==========

func (p *Program) initializeMint(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 2); err != nil {
		return err
	}
	payer, mint := accounts[0].Pubkey, accounts[1].Pubkey
	m := &Mint{MintAuthority: args.authority, Decimals: args.decimals, HookProgram: args.hook}
	if err := ctx.CreateAccount(payer, mint, m.Marshal()); err != nil {
		return err
	}
	ctx.Log("initialize mint %s decimals=%d hook=%s", mint, m.Decimals, m.HookProgram)
	return nil
}

func (p *Program) initializeAccount(ctx *vm.InvokeContext, accounts []types.AccountMeta) error {
	if err := need(accounts, 4); err != nil {
		return err
	}
	payer, addr, owner, mint := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey
	if _, err := loadMint(ctx, mint); err != nil {
		return err
	}
	ta := &TokenAccount{Mint: mint, Owner: owner}
	got, _, err := ctx.CreatePDA(payer, associatedSeeds(owner, mint), ta.Marshal())
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("%w: want %s, got %s", ErrAddressMismatch, got, addr)
	}
	return nil
}

func (p *Program) mintTo(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	mintAddr, destAddr, authority := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	mint, err := loadMint(ctx, mintAddr)
	if err != nil {
		return err
	}
	if mint.MintAuthority != authority || !ctx.IsSigner(authority) {
		return ErrNotMintAuthority
	}
	dest, err := loadTokenAccount(ctx, destAddr)
	if err != nil {
		return err
	}
	if dest.Mint != mintAddr {
		return ErrMintMismatch
	}

	if mint.Supply, err = vm.CheckedAdd(mint.Supply, args.amount); err != nil {
		return err
	}
	if dest.Amount, err = vm.CheckedAdd(dest.Amount, args.amount); err != nil {
		return err
	}
	if err := ctx.SetData(mintAddr, mint.Marshal()); err != nil {
		return err
	}
	return ctx.SetData(destAddr, dest.Marshal())
}

func (p *Program) approve(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	srcAddr, delegate, owner := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	src, err := loadTokenAccount(ctx, srcAddr)
	if err != nil {
		return err
	}
	if src.Owner != owner || !ctx.IsSigner(owner) {
		return ErrOwnerMismatch
	}
	src.Delegate = delegate
	src.DelegatedAmount = args.amount
	ctx.Log("approve %s to spend %d from %s", delegate, args.amount, srcAddr)
	return ctx.SetData(srcAddr, src.Marshal())
}

// transferChecked 授权检查后先回调钩子，钩子通过后才移动余额
func (p *Program) transferChecked(ctx *vm.InvokeContext, accounts []types.AccountMeta, args ixArgs) error {
	if err := need(accounts, 4); err != nil {
		return err
	}
	srcAddr, mintAddr, dstAddr, authority := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey

	mint, err := loadMint(ctx, mintAddr)
	if err != nil {
		return err
	}
	if mint.Decimals != args.decimals {
		return fmt.Errorf("%w: mint has %d, got %d", ErrDecimalsMismatch, mint.Decimals, args.decimals)
	}
	src, err := loadTokenAccount(ctx, srcAddr)
	if err != nil {
		return err
	}
	dst, err := loadTokenAccount(ctx, dstAddr)
	if err != nil {
		return err
	}
	if src.Mint != mintAddr || dst.Mint != mintAddr {
		return ErrMintMismatch
	}
	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", vm.ErrMissingSignature, authority)
	}
	if src.Amount < args.amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, srcAddr, src.Amount, args.amount)
	}
	switch {
	case authority == src.Owner:
	case !src.Delegate.IsZero() && authority == src.Delegate:
		if src.DelegatedAmount < args.amount {
			return ErrInsufficientAllowance
		}
		src.DelegatedAmount -= args.amount
		if src.DelegatedAmount == 0 {
			src.Delegate = types.Pubkey{}
		}
		if err := ctx.SetData(srcAddr, src.Marshal()); err != nil {
			return err
		}
	default:
		return ErrOwnerMismatch
	}

	if !mint.HookProgram.IsZero() {
		if err := p.callHook(ctx, mint.HookProgram, accounts, args.amount); err != nil {
			return err
		}
	}

	// 钩子可能读过但不会改动余额；重新加载以支持 src == dst
	if src, err = loadTokenAccount(ctx, srcAddr); err != nil {
		return err
	}
	if src.Amount, err = vm.CheckedSub(src.Amount, args.amount); err != nil {
		return err
	}
	if err := ctx.SetData(srcAddr, src.Marshal()); err != nil {
		return err
	}
	if dst, err = loadTokenAccount(ctx, dstAddr); err != nil {
		return err
	}
	if dst.Amount, err = vm.CheckedAdd(dst.Amount, args.amount); err != nil {
		return err
	}
	if err := ctx.SetData(dstAddr, dst.Marshal()); err != nil {
		return err
	}
	ctx.Log("transfer %s from %s to %s", FormatAmount(args.amount, mint.Decimals), srcAddr, dstAddr)
	return nil
}

func (p *Program) callHook(ctx *vm.InvokeContext, hook types.Pubkey, accounts []types.AccountMeta, amount uint64) error {
	srcAddr, mintAddr, dstAddr, authority := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, accounts[3].Pubkey
	metadata, _ := ExtraAccountMetasAddress(mintAddr, hook)

	metaAcc, err := ctx.Account(metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata %s", ErrMissingExtraAccount, metadata)
	}
	if metaAcc.Owner != hook {
		return fmt.Errorf("%w: metadata not owned by hook", ErrInvalidExtraMeta)
	}
	list, err := UnmarshalExtraAccountMetaList(metaAcc.Data)
	if err != nil {
		return err
	}
	extras, err := ResolveExtraAccounts(list, hook, []types.Pubkey{srcAddr, mintAddr, dstAddr, authority, metadata})
	if err != nil {
		return err
	}

	provided := make(map[types.Pubkey]bool, len(accounts))
	for _, m := range accounts[4:] {
		provided[m.Pubkey] = true
	}
	for _, want := range append([]types.AccountMeta{types.ReadOnly(metadata), types.ReadOnly(hook)}, extras...) {
		if !provided[want.Pubkey] {
			return fmt.Errorf("%w: %s", ErrMissingExtraAccount, want.Pubkey)
		}
	}

	if err := setTransferring(ctx, true, srcAddr, dstAddr); err != nil {
		return err
	}
	ix := types.Instruction{
		ProgramID: hook,
		Accounts: append([]types.AccountMeta{
			types.ReadOnly(srcAddr),
			types.ReadOnly(mintAddr),
			types.ReadOnly(dstAddr),
			types.ReadOnly(authority),
			types.ReadOnly(metadata),
		}, extras...),
		Data: ExecuteData(amount),
	}
	if err := ctx.Invoke(ix); err != nil {
		return err
	}
	return setTransferring(ctx, false, srcAddr, dstAddr)
}

func setTransferring(ctx *vm.InvokeContext, on bool, addrs ...types.Pubkey) error {
	for _, addr := range addrs {
		ta, err := loadTokenAccount(ctx, addr)
		if err != nil {
			return err
		}
		ta.Transferring = on
		if err := ctx.SetData(addr, ta.Marshal()); err != nil {
			return err
		}
	}
	return nil
}
