// Package compiler 把一批指令压缩成可延迟重放的描述符：
// 账户去重、按权限分四档排序、指令改写为账户表下标。
package compiler

import (
	"errors"
	"fmt"
	"sort"

	"hookvault/types"
)

// MaxAccounts 下标是 u8
const MaxAccounts = 256

var (
	ErrNoInstructions  = errors.New("nothing to compile")
	ErrTooManyAccounts = errors.New("too many distinct accounts")
	ErrUnknownAccount  = errors.New("account index out of range")
)

// CompiledInstruction 以账户表下标表示的指令，data 原样保留
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// CompiledTransaction 描述符。账户表顺序：
// [0, NumRwSigners) 可写签名者，接着 NumRoSigners 个只读签名者，
// 接着 NumRw 个可写非签名者，其余只读。
type CompiledTransaction struct {
	NumRwSigners uint8
	NumRoSigners uint8
	NumRw        uint8
	Instructions []CompiledInstruction
	SignerSeeds  [][][]byte
	Accounts     []types.Pubkey
}

func priority(m types.AccountMeta) int {
	switch {
	case m.IsSigner && m.IsWritable:
		return 0
	case m.IsSigner:
		return 1
	case m.IsWritable:
		return 2
	default:
		return 3
	}
}

// Compile 编译指令，返回描述符和与账户表一一对应的附带账户列表
// （签名位清零，可写位只由下标区间决定）。
func Compile(ixs []types.Instruction, signerSeeds [][][]byte) (*CompiledTransaction, []types.AccountMeta, error) {
	if len(ixs) == 0 {
		return nil, nil, ErrNoInstructions
	}

	// 按首次出现顺序收集，权限按位或合并
	merged := make(map[types.Pubkey]*types.AccountMeta)
	var order []types.Pubkey
	touch := func(m types.AccountMeta) {
		cur, ok := merged[m.Pubkey]
		if !ok {
			cur = &types.AccountMeta{Pubkey: m.Pubkey}
			merged[m.Pubkey] = cur
			order = append(order, m.Pubkey)
		}
		cur.IsSigner = cur.IsSigner || m.IsSigner
		cur.IsWritable = cur.IsWritable || m.IsWritable
	}
	for _, ix := range ixs {
		touch(types.ReadOnly(ix.ProgramID))
		for _, m := range ix.Accounts {
			touch(m)
		}
	}
	if len(order) > MaxAccounts {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrTooManyAccounts, len(order), MaxAccounts)
	}

	// 稳定排序：同档保持首次出现顺序
	sort.SliceStable(order, func(i, j int) bool {
		return priority(*merged[order[i]]) < priority(*merged[order[j]])
	})

	var counts [4]int
	for _, pk := range order {
		counts[priority(*merged[pk])]++
	}
	for _, c := range counts[:3] {
		if c > 255 {
			return nil, nil, fmt.Errorf("%w: %d in one class", ErrTooManyAccounts, c)
		}
	}

	index := make(map[types.Pubkey]uint8, len(order))
	for i, pk := range order {
		index[pk] = uint8(i)
	}

	ct := &CompiledTransaction{
		NumRwSigners: uint8(counts[0]),
		NumRoSigners: uint8(counts[1]),
		NumRw:        uint8(counts[2]),
		SignerSeeds:  signerSeeds,
		Accounts:     order,
	}
	for _, ix := range ixs {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Accounts:       make([]uint8, len(ix.Accounts)),
			Data:           append([]byte(nil), ix.Data...),
		}
		for i, m := range ix.Accounts {
			ci.Accounts[i] = index[m.Pubkey]
		}
		ct.Instructions = append(ct.Instructions, ci)
	}
	return ct, ct.RemainingAccounts(), nil
}

// IsSignerIndex 下标是否落在签名者区间
func (ct *CompiledTransaction) IsSignerIndex(i int) bool {
	return i < int(ct.NumRwSigners)+int(ct.NumRoSigners)
}

// IsWritableIndex 下标是否落在两个可写区间之一
func (ct *CompiledTransaction) IsWritableIndex(i int) bool {
	signers := int(ct.NumRwSigners) + int(ct.NumRoSigners)
	return i < int(ct.NumRwSigners) || (i >= signers && i < signers+int(ct.NumRw))
}

// RemainingAccounts 提交给调度器的附带账户列表：调度时调度器不是签名者
func (ct *CompiledTransaction) RemainingAccounts() []types.AccountMeta {
	out := make([]types.AccountMeta, len(ct.Accounts))
	for i, pk := range ct.Accounts {
		out[i] = types.AccountMeta{Pubkey: pk, IsWritable: ct.IsWritableIndex(i)}
	}
	return out
}

// Decompile 还原指令，权限由下标区间推出
func (ct *CompiledTransaction) Decompile() ([]types.Instruction, error) {
	meta := func(idx uint8) (types.AccountMeta, error) {
		i := int(idx)
		if i >= len(ct.Accounts) {
			return types.AccountMeta{}, fmt.Errorf("%w: %d of %d", ErrUnknownAccount, i, len(ct.Accounts))
		}
		return types.AccountMeta{
			Pubkey:     ct.Accounts[i],
			IsSigner:   ct.IsSignerIndex(i),
			IsWritable: ct.IsWritableIndex(i),
		}, nil
	}

	ixs := make([]types.Instruction, 0, len(ct.Instructions))
	for _, ci := range ct.Instructions {
		prog, err := meta(ci.ProgramIDIndex)
		if err != nil {
			return nil, err
		}
		ix := types.Instruction{
			ProgramID: prog.Pubkey,
			Accounts:  make([]types.AccountMeta, len(ci.Accounts)),
			Data:      append([]byte(nil), ci.Data...),
		}
		for i, idx := range ci.Accounts {
			if ix.Accounts[i], err = meta(idx); err != nil {
				return nil, err
			}
		}
		ixs = append(ixs, ix)
	}
	return ixs, nil
}
