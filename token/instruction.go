package token

import (
	"fmt"

	"hookvault/types"
	"hookvault/vm"
)

var (
	ixInitializeMint    = types.Discriminator("token", "initialize_mint")
	ixInitializeAccount = types.Discriminator("token", "initialize_account")
	ixMintTo            = types.Discriminator("token", "mint_to")
	ixApprove           = types.Discriminator("token", "approve")
	ixTransferChecked   = types.Discriminator("token", "transfer_checked")

	// ExecuteDiscriminator 转账钩子回调的指令前缀
	ExecuteDiscriminator = types.Discriminator("spl-transfer-hook-interface", "execute")
)

// InitializeMint accounts: [payer(s,w), mint(s,w)]
func InitializeMint(payer, mint, authority types.Pubkey, decimals uint8, hookProgram types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer), types.WritableSigner(mint)},
		Data: types.NewWireWriter(ixInitializeMint).
			Uint(1, uint64(decimals)).
			Pubkey(2, authority).
			Pubkey(3, hookProgram).
			Finish(),
	}
}

// InitializeAccount accounts: [payer(s,w), account(w), owner, mint]
func InitializeAccount(payer, owner, mint types.Pubkey) types.Instruction {
	addr, _ := AssociatedAddress(owner, mint)
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(payer),
			types.Writable(addr),
			types.ReadOnly(owner),
			types.ReadOnly(mint),
		},
		Data: types.NewWireWriter(ixInitializeAccount).Finish(),
	}
}

// MintTo accounts: [mint(w), destination(w), authority(s)]
func MintTo(mint, destination, authority types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(mint),
			types.Writable(destination),
			types.ReadOnlySigner(authority),
		},
		Data: types.NewWireWriter(ixMintTo).Uint(1, amount).Finish(),
	}
}

// Approve accounts: [source(w), delegate, owner(s)]
func Approve(source, delegate, owner types.Pubkey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(source),
			types.ReadOnly(delegate),
			types.ReadOnlySigner(owner),
		},
		Data: types.NewWireWriter(ixApprove).Uint(1, amount).Finish(),
	}
}

// TransferChecked accounts: [source(w), mint, destination(w), authority(s), hookAccounts...]
func TransferChecked(source, mint, destination, authority types.Pubkey, amount uint64, decimals uint8, hookAccounts ...types.AccountMeta) types.Instruction {
	accounts := []types.AccountMeta{
		types.Writable(source),
		types.ReadOnly(mint),
		types.Writable(destination),
		types.ReadOnlySigner(authority),
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  append(accounts, hookAccounts...),
		Data: types.NewWireWriter(ixTransferChecked).
			Uint(1, amount).
			Uint(2, uint64(decimals)).
			Finish(),
	}
}

// ExecuteData 钩子回调的指令数据
func ExecuteData(amount uint64) []byte {
	return types.NewWireWriter(ExecuteDiscriminator).Uint(1, amount).Finish()
}

// ParseExecuteData 钩子程序解析回调数据
func ParseExecuteData(body []byte) (uint64, error) {
	var amount uint64
	err := types.WalkWire(body, func(f types.WireField) error {
		if f.Num == 1 {
			amount = f.Varint
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("decode execute: %w", err)
	}
	return amount, nil
}

// ========== 参数解析 ==========

type ixArgs struct {
	amount    uint64
	decimals  uint8
	authority types.Pubkey
	hook      types.Pubkey
}

func parseArgs(kind [types.DiscriminatorSize]byte, body []byte) (ixArgs, error) {
	var a ixArgs
	err := types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch {
		case kind == ixInitializeMint && f.Num == 1:
			a.decimals, err = f.Uint8()
		case kind == ixInitializeMint && f.Num == 2:
			a.authority, err = f.Pubkey()
		case kind == ixInitializeMint && f.Num == 3:
			a.hook, err = f.Pubkey()
		case kind == ixTransferChecked && f.Num == 2:
			a.decimals, err = f.Uint8()
		case f.Num == 1:
			a.amount = f.Varint
		}
		return err
	})
	if err != nil {
		return ixArgs{}, fmt.Errorf("%w: %v", vm.ErrInvalidInstruction, err)
	}
	return a, nil
}
