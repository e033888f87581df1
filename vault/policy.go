package vault

import (
	"fmt"

	"hookvault/token"
	"hookvault/types"
	"hookvault/vm"
)

// execute 转账钩子：由资产运行时在移动余额之前同步回调。
// accounts: [source, mint, destination, authority, metadata, authority_admission]
//
// 调用方不可信，只依据派生地址和账户内容判断。
func (p *Program) execute(ctx *vm.InvokeContext, accounts []types.AccountMeta, amount uint64) error {
	if err := need(accounts, 6); err != nil {
		return err
	}
	src, mint, authority, metadata, recordAddr :=
		accounts[0].Pubkey, accounts[1].Pubkey, accounts[3].Pubkey, accounts[4].Pubkey, accounts[5].Pubkey

	if err := checkTransferring(ctx, src); err != nil {
		return err
	}
	if metadata != MetadataAddress(mint) {
		return fmt.Errorf("%w: metadata %s", ErrAccountMismatch, metadata)
	}

	if want, _ := AdmissionAddress(authority); recordAddr != want {
		return fmt.Errorf("%w: %s is not the admission record of %s", ErrNotWhitelisted, recordAddr, authority)
	}
	if _, ok, err := LookupAdmission(ctx.Lookup, authority); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, authority)
	}
	ctx.Log("transfer of %d approved for %s", amount, authority)
	return nil
}

// checkTransferring 源账户必须处于资产运行时设置的转账中状态
func checkTransferring(ctx *vm.InvokeContext, src types.Pubkey) error {
	acc, ok, err := ctx.Lookup(src)
	if err != nil {
		return err
	}
	if !ok || acc.Owner != token.ProgramID {
		return fmt.Errorf("%w: %s", ErrNotTransferring, src)
	}
	ta, err := token.UnmarshalTokenAccount(acc.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotTransferring, err)
	}
	if !ta.Transferring {
		return fmt.Errorf("%w: %s", ErrNotTransferring, src)
	}
	return nil
}
