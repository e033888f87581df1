package vault

import (
	"fmt"

	"hookvault/scheduler"
	"hookvault/token"
	"hookvault/types"
)

// ProgramID 白名单金库程序，同时是治理资产的转账钩子
var ProgramID = types.ProgramID("vault")

const (
	ConfigSeed         = "vault_config"
	AdmissionSeed      = "admission"
	QueueAuthoritySeed = "queue_authority"

	// Decimals 治理资产的精度
	Decimals uint8 = 6

	// ApplyDescription 轮换任务在调度器里的描述
	ApplyDescription = "apply_merkle_root"
)

func mustFind(seeds [][]byte) (types.Pubkey, uint8) {
	addr, bump, err := types.FindProgramAddress(seeds, ProgramID)
	if err != nil {
		panic(fmt.Sprintf("vault address: %v", err))
	}
	return addr, bump
}

func configSeeds() [][]byte { return [][]byte{[]byte(ConfigSeed)} }

func admissionSeeds(member types.Pubkey) [][]byte {
	return [][]byte{[]byte(AdmissionSeed), member.Bytes()}
}

func queueAuthoritySeeds() [][]byte { return [][]byte{[]byte(QueueAuthoritySeed)} }

// withBump 签名用的完整种子
func withBump(seeds [][]byte, bump uint8) [][]byte {
	return append(append([][]byte(nil), seeds...), []byte{bump})
}

// ConfigAddress 金库配置地址，也是持仓账户的 owner
func ConfigAddress() (types.Pubkey, uint8) { return mustFind(configSeeds()) }

// AdmissionAddress 成员准入记录地址
func AdmissionAddress(member types.Pubkey) (types.Pubkey, uint8) {
	return mustFind(admissionSeeds(member))
}

// QueueAuthorityAddress 代表本金库向调度器提交任务的派生身份
func QueueAuthorityAddress() (types.Pubkey, uint8) { return mustFind(queueAuthoritySeeds()) }

// HoldingAddress 金库持仓账户
func HoldingAddress(mint types.Pubkey) types.Pubkey {
	cfg, _ := ConfigAddress()
	addr, _ := token.AssociatedAddress(cfg, mint)
	return addr
}

// MetadataAddress mint 的额外账户列表
func MetadataAddress(mint types.Pubkey) types.Pubkey {
	addr, _ := token.ExtraAccountMetasAddress(mint, ProgramID)
	return addr
}

// PolicyMetaList 钩子需要的额外账户：转账 authority 的准入记录
func PolicyMetaList() *token.ExtraAccountMetaList {
	return &token.ExtraAccountMetaList{Metas: []token.ExtraAccountMeta{{
		Seeds: []token.Seed{
			token.LiteralSeed([]byte(AdmissionSeed)),
			token.AccountKeySeed(3),
		},
	}}}
}

// TransferAccounts 转移治理资产时 transfer_checked 需要附带的钩子账户
func TransferAccounts(source, mint, destination, authority types.Pubkey) []types.AccountMeta {
	metas, err := token.TransferHookAccounts(PolicyMetaList(), ProgramID, source, mint, destination, authority)
	if err != nil {
		panic(fmt.Sprintf("policy accounts: %v", err))
	}
	return metas
}

// TransferInstruction 带钩子账户的 transfer_checked
func TransferInstruction(source, mint, destination, authority types.Pubkey, amount uint64) types.Instruction {
	return token.TransferChecked(source, mint, destination, authority, amount, Decimals,
		TransferAccounts(source, mint, destination, authority)...)
}

// TaskAccounts 本金库在某个队列上提交任务用到的调度器账户
func TaskAccounts(queue types.Pubkey, taskID uint16) (record, task types.Pubkey) {
	qa, _ := QueueAuthorityAddress()
	return scheduler.TaskQueueAuthorityAddress(queue, qa), scheduler.TaskAddress(queue, taskID)
}
