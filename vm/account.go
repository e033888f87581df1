package vm

import (
	"fmt"

	"hookvault/keys"
	"hookvault/types"
)

// SystemProgramID 未被任何程序接管的普通账户的 owner
var SystemProgramID = types.ZeroPubkey

// Account 链上账户：owner 程序、lamports 余额和程序私有数据
type Account struct {
	Owner    types.Pubkey `json:"owner"`
	Lamports uint64       `json:"lamports"`
	Data     []byte       `json:"data"`
}

// KeyedAccount 带地址的账户，用于列举
type KeyedAccount struct {
	Address types.Pubkey `json:"address"`
	Account *Account     `json:"account"`
}

func (a *Account) Marshal() []byte {
	return types.NewWireWriter().
		Pubkey(1, a.Owner).
		Uint(2, a.Lamports).
		Bytes(3, a.Data).
		Finish()
}

func UnmarshalAccount(b []byte) (*Account, error) {
	a := &Account{}
	err := types.WalkWire(b, func(f types.WireField) error {
		switch f.Num {
		case 1:
			pk, err := f.Pubkey()
			if err != nil {
				return err
			}
			a.Owner = pk
		case 2:
			a.Lamports = f.Varint
		case 3:
			a.Data = append([]byte(nil), f.Raw...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}

// ========== StateView 上的账户读写 ==========

// LoadAccount 读取账户；不存在时 ok=false
func LoadAccount(sv StateView, addr types.Pubkey) (*Account, bool, error) {
	raw, ok, err := sv.Get(keys.KeyAccount(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := UnmarshalAccount(raw)
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// StoreAccount 写入账户并维护 owner 索引
func StoreAccount(sv StateView, addr types.Pubkey, acc *Account) error {
	prev, ok, err := LoadAccount(sv, addr)
	if err != nil {
		return err
	}
	if ok && prev.Owner != acc.Owner {
		sv.Del(keys.KeyOwnerIndex(prev.Owner, addr))
	}
	sv.Set(keys.KeyAccount(addr), acc.Marshal())
	sv.Set(keys.KeyOwnerIndex(acc.Owner, addr), addr.Bytes())
	return nil
}

// RemoveAccount 删除账户及其索引
func RemoveAccount(sv StateView, addr types.Pubkey) error {
	prev, ok, err := LoadAccount(sv, addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	sv.Del(keys.KeyOwnerIndex(prev.Owner, addr))
	sv.Del(keys.KeyAccount(addr))
	return nil
}
