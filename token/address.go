package token

import (
	"fmt"

	"hookvault/types"
)

// ProgramID 资产运行时程序
var ProgramID = types.ProgramID("token")

// ExtraAccountMetasSeed 钩子程序登记额外账户列表的种子前缀
const ExtraAccountMetasSeed = "extra-account-metas"

// AssociatedAddress owner 持有 mint 的标准账户地址
func AssociatedAddress(owner, mint types.Pubkey) (types.Pubkey, uint8) {
	addr, bump, err := types.FindProgramAddress(associatedSeeds(owner, mint), ProgramID)
	if err != nil {
		panic(fmt.Sprintf("associated address for %s/%s: %v", owner, mint, err))
	}
	return addr, bump
}

func associatedSeeds(owner, mint types.Pubkey) [][]byte {
	return [][]byte{owner.Bytes(), ProgramID.Bytes(), mint.Bytes()}
}

// ExtraAccountMetasAddress 钩子程序下 mint 的额外账户列表地址
func ExtraAccountMetasAddress(mint, hookProgram types.Pubkey) (types.Pubkey, uint8) {
	addr, bump, err := types.FindProgramAddress([][]byte{[]byte(ExtraAccountMetasSeed), mint.Bytes()}, hookProgram)
	if err != nil {
		panic(fmt.Sprintf("extra account metas address for %s: %v", mint, err))
	}
	return addr, bump
}

// ResolveExtraAccounts 按列表派生额外账户。base 是钩子收到的固定账户
// [source, mint, destination, authority, metadata]，已解析的额外账户依次追加，
// 可以被后面的种子按下标引用。
func ResolveExtraAccounts(list *ExtraAccountMetaList, hookProgram types.Pubkey, base []types.Pubkey) ([]types.AccountMeta, error) {
	keys := append([]types.Pubkey(nil), base...)
	out := make([]types.AccountMeta, 0, len(list.Metas))
	for i, m := range list.Metas {
		seeds := make([][]byte, 0, len(m.Seeds))
		for _, s := range m.Seeds {
			switch s.Kind {
			case SeedLiteral:
				seeds = append(seeds, s.Literal)
			case SeedAccountKey:
				if int(s.Index) >= len(keys) {
					return nil, fmt.Errorf("%w: meta %d references account %d of %d", ErrInvalidExtraMeta, i, s.Index, len(keys))
				}
				seeds = append(seeds, keys[s.Index].Bytes())
			default:
				return nil, fmt.Errorf("%w: meta %d seed kind %d", ErrInvalidExtraMeta, i, s.Kind)
			}
		}
		addr, _, err := types.FindProgramAddress(seeds, hookProgram)
		if err != nil {
			return nil, fmt.Errorf("%w: meta %d: %v", ErrInvalidExtraMeta, i, err)
		}
		keys = append(keys, addr)
		out = append(out, types.AccountMeta{Pubkey: addr, IsWritable: m.IsWritable})
	}
	return out, nil
}

// TransferHookAccounts 客户端构造 transfer_checked 时需要附带的账户：
// 元数据账户、解析出的额外账户、钩子程序本身
func TransferHookAccounts(list *ExtraAccountMetaList, hookProgram, source, mint, destination, authority types.Pubkey) ([]types.AccountMeta, error) {
	metadata, _ := ExtraAccountMetasAddress(mint, hookProgram)
	extras, err := ResolveExtraAccounts(list, hookProgram, []types.Pubkey{source, mint, destination, authority, metadata})
	if err != nil {
		return nil, err
	}
	out := []types.AccountMeta{types.ReadOnly(metadata)}
	out = append(out, extras...)
	return append(out, types.ReadOnly(hookProgram)), nil
}
