package vault

import (
	"fmt"

	"hookvault/scheduler"
	"hookvault/token"
	"hookvault/types"
	"hookvault/vm"
)

var (
	ixInitialize             = types.Discriminator("vault", "initialize")
	ixRegisterPolicyMetadata = types.Discriminator("vault", "register_policy_metadata")
	ixUpdateRoot             = types.Discriminator("vault", "update_root")
	ixJoin                   = types.Discriminator("vault", "join")
	ixRevoke                 = types.Discriminator("vault", "revoke")
	ixDeposit                = types.Discriminator("vault", "deposit")
	ixWithdraw               = types.Discriminator("vault", "withdraw")
	ixSchedule               = types.Discriminator("vault", "schedule")
	ixApply                  = types.Discriminator("vault", "apply")
)

// 参数字段号在所有指令间共用
const (
	fieldRoot    = 1
	fieldAmount  = 2
	fieldProof   = 3
	fieldMember  = 4
	fieldTaskID  = 5
	fieldTrigger = 6
)

func configMeta(writable bool) types.AccountMeta {
	addr, _ := ConfigAddress()
	if writable {
		return types.Writable(addr)
	}
	return types.ReadOnly(addr)
}

func admissionMeta(member types.Pubkey) types.AccountMeta {
	addr, _ := AdmissionAddress(member)
	return types.Writable(addr)
}

// Initialize accounts: [admin(s,w), config(w), config_admission(w), mint(s,w), holding(w)]
func Initialize(admin, mint types.Pubkey, root types.Hash, initialSupply uint64) types.Instruction {
	cfg, _ := ConfigAddress()
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(admin),
			configMeta(true),
			admissionMeta(cfg),
			types.WritableSigner(mint),
			types.Writable(HoldingAddress(mint)),
		},
		Data: types.NewWireWriter(ixInitialize).Hash(fieldRoot, root).Uint(fieldAmount, initialSupply).Finish(),
	}
}

// RegisterPolicyMetadata accounts: [payer(s,w), config, mint, metadata(w)]
func RegisterPolicyMetadata(payer, mint types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(payer),
			configMeta(false),
			types.ReadOnly(mint),
			types.Writable(MetadataAddress(mint)),
		},
		Data: types.NewWireWriter(ixRegisterPolicyMetadata).Finish(),
	}
}

// UpdateRoot accounts: [admin(s), config(w)]
func UpdateRoot(admin types.Pubkey, root types.Hash) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.ReadOnlySigner(admin), configMeta(true)},
		Data:      types.NewWireWriter(ixUpdateRoot).Hash(fieldRoot, root).Finish(),
	}
}

// Join accounts: [member(s,w), config, admission(w)]
func Join(member types.Pubkey, proof []types.Hash) types.Instruction {
	w := types.NewWireWriter(ixJoin)
	for _, p := range proof {
		w.Hash(fieldProof, p)
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(member), configMeta(false), admissionMeta(member)},
		Data:      w.Finish(),
	}
}

// Revoke accounts: [admin(s,w), config, admission(w), holding(w), mint, admin_token(w), hook accounts...]
// 未提走的存款从持仓账户转回管理员的代币账户
func Revoke(admin, member, mint types.Pubkey) types.Instruction {
	cfg, _ := ConfigAddress()
	holding := HoldingAddress(mint)
	adminToken, _ := token.AssociatedAddress(admin, mint)
	accounts := []types.AccountMeta{
		types.WritableSigner(admin),
		configMeta(false),
		admissionMeta(member),
		types.Writable(holding),
		types.ReadOnly(mint),
		types.Writable(adminToken),
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  append(accounts, TransferAccounts(holding, mint, adminToken, cfg)...),
		Data:      types.NewWireWriter(ixRevoke).Pubkey(fieldMember, member).Finish(),
	}
}

// Deposit accounts: [member(s), config, admission(w)]
func Deposit(member types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.ReadOnlySigner(member), configMeta(false), admissionMeta(member)},
		Data:      types.NewWireWriter(ixDeposit).Uint(fieldAmount, amount).Finish(),
	}
}

// Withdraw accounts: [member(s), config, admission(w), holding(w)]
func Withdraw(member, mint types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnlySigner(member),
			configMeta(false),
			admissionMeta(member),
			types.Writable(HoldingAddress(mint)),
		},
		Data: types.NewWireWriter(ixWithdraw).Uint(fieldAmount, amount).Finish(),
	}
}

// DepositInstructions 转入持仓账户并记账，必须放在同一笔交易里
func DepositInstructions(member, mint types.Pubkey, amount uint64) []types.Instruction {
	src, _ := token.AssociatedAddress(member, mint)
	return []types.Instruction{
		TransferInstruction(src, mint, HoldingAddress(mint), member, amount),
		Deposit(member, amount),
	}
}

// WithdrawInstructions 授权后由成员作为代理从持仓账户转出，必须放在同一笔交易里
func WithdrawInstructions(member, mint types.Pubkey, amount uint64) []types.Instruction {
	dst, _ := token.AssociatedAddress(member, mint)
	return []types.Instruction{
		Withdraw(member, mint, amount),
		TransferInstruction(HoldingAddress(mint), mint, dst, member, amount),
	}
}

// Schedule accounts: [admin(s,w), config(w), queue_authority, task_queue_authority, task_queue(w), task(w)]
func Schedule(admin, queue types.Pubkey, root types.Hash, taskID uint16, trigger scheduler.Trigger) types.Instruction {
	qa, _ := QueueAuthorityAddress()
	record, task := TaskAccounts(queue, taskID)
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(admin),
			configMeta(true),
			types.ReadOnly(qa),
			types.ReadOnly(record),
			types.Writable(queue),
			types.Writable(task),
		},
		Data: types.NewWireWriter(ixSchedule).
			Hash(fieldRoot, root).
			Uint(fieldTaskID, uint64(taskID)).
			Bytes(fieldTrigger, trigger.Marshal()).
			Finish(),
	}
}

// Apply accounts: [config(w)]；任何人都可以调用
func Apply() types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{configMeta(true)},
		Data:      types.NewWireWriter(ixApply).Finish(),
	}
}

// ========== 参数解析 ==========

type ixArgs struct {
	root    types.Hash
	amount  uint64
	proof   []types.Hash
	member  types.Pubkey
	taskID  uint16
	trigger scheduler.Trigger
}

func parseArgs(body []byte) (ixArgs, error) {
	var a ixArgs
	err := types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case fieldRoot:
			a.root, err = f.Hash()
		case fieldAmount:
			a.amount = f.Varint
		case fieldProof:
			var h types.Hash
			if h, err = f.Hash(); err == nil {
				a.proof = append(a.proof, h)
			}
		case fieldMember:
			a.member, err = f.Pubkey()
		case fieldTaskID:
			a.taskID, err = f.Uint16()
		case fieldTrigger:
			a.trigger, err = scheduler.UnmarshalTrigger(f.Raw)
		}
		return err
	})
	if err != nil {
		return ixArgs{}, fmt.Errorf("%w: %v", vm.ErrInvalidInstruction, err)
	}
	return a, nil
}
