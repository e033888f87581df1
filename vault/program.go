package vault

import (
	"fmt"

	"hookvault/token"
	"hookvault/types"
	"hookvault/vm"
)

// Program 白名单金库：准入、转账策略、存取记账和延迟轮换
type Program struct{}

func NewProgram() *Program { return &Program{} }

func (p *Program) ID() types.Pubkey { return ProgramID }

func (p *Program) Name() string { return "vault" }

func (p *Program) Process(ctx *vm.InvokeContext, accounts []types.AccountMeta, data []byte) error {
	if len(data) < types.DiscriminatorSize {
		return vm.ErrInvalidInstruction
	}
	var kind [types.DiscriminatorSize]byte
	copy(kind[:], data)
	body := data[types.DiscriminatorSize:]

	// 转账钩子回调走接口约定的前缀
	if kind == token.ExecuteDiscriminator {
		amount, err := token.ParseExecuteData(body)
		if err != nil {
			return fmt.Errorf("%w: %v", vm.ErrInvalidInstruction, err)
		}
		return p.execute(ctx, accounts, amount)
	}

	args, err := parseArgs(body)
	if err != nil {
		return err
	}
	switch kind {
	case ixInitialize:
		return p.initialize(ctx, accounts, args)
	case ixRegisterPolicyMetadata:
		return p.registerPolicyMetadata(ctx, accounts)
	case ixUpdateRoot:
		return p.updateRoot(ctx, accounts, args)
	case ixJoin:
		return p.join(ctx, accounts, args)
	case ixRevoke:
		return p.revoke(ctx, accounts, args)
	case ixDeposit:
		return p.deposit(ctx, accounts, args)
	case ixWithdraw:
		return p.withdraw(ctx, accounts, args)
	case ixSchedule:
		return p.schedule(ctx, accounts, args)
	case ixApply:
		return p.apply(ctx, accounts)
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

// loadConfigAt 读取配置并确认调用方给的是规范地址
func loadConfigAt(ctx *vm.InvokeContext, addr types.Pubkey) (*Config, error) {
	want, _ := ConfigAddress()
	if addr != want {
		return nil, fmt.Errorf("%w: config %s", ErrAccountMismatch, addr)
	}
	return LoadConfig(ctx.Lookup)
}

// requireAdmin 管理员必须签名且与配置一致
func requireAdmin(ctx *vm.InvokeContext, cfg *Config, admin types.Pubkey) error {
	if cfg.Admin != admin || !ctx.IsSigner(admin) {
		return ErrUnauthorized
	}
	return nil
}

// loadMemberRecord 读取签名成员自己的准入记录
func loadMemberRecord(ctx *vm.InvokeContext, member, recordAddr types.Pubkey) (*AdmissionRecord, error) {
	if !ctx.IsSigner(member) {
		return nil, fmt.Errorf("%w: %s", vm.ErrMissingSignature, member)
	}
	if want, _ := AdmissionAddress(member); recordAddr != want {
		return nil, fmt.Errorf("%w: admission record %s", ErrAccountMismatch, recordAddr)
	}
	rec, ok, err := LookupAdmission(ctx.Lookup, member)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, member)
	}
	return rec, nil
}
