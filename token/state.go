package token

import (
	"fmt"

	"hookvault/types"
)

var (
	mintDiscriminator          = types.AccountDiscriminator("Mint")
	tokenAccountDiscriminator  = types.AccountDiscriminator("TokenAccount")
	extraMetaListDiscriminator = types.AccountDiscriminator("ExtraAccountMetaList")
)

// ========== Mint ==========

// Mint 一种资产；HookProgram 非零时每次转账都会同步回调它
type Mint struct {
	MintAuthority types.Pubkey
	Supply        uint64
	Decimals      uint8
	HookProgram   types.Pubkey
}

func (m *Mint) Marshal() []byte {
	return types.NewWireWriter(mintDiscriminator).
		Pubkey(1, m.MintAuthority).
		Uint(2, m.Supply).
		Uint(3, uint64(m.Decimals)).
		Pubkey(4, m.HookProgram).
		Finish()
}

func UnmarshalMint(b []byte) (*Mint, error) {
	body, err := types.SplitDiscriminator(b, mintDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	m := &Mint{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			m.MintAuthority, err = f.Pubkey()
		case 2:
			m.Supply = f.Varint
		case 3:
			m.Decimals, err = f.Uint8()
		case 4:
			m.HookProgram, err = f.Pubkey()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	return m, nil
}

// ========== TokenAccount ==========

// TokenAccount 某个 owner 持有某种资产的余额
type TokenAccount struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        types.Pubkey // 零值表示无代理
	DelegatedAmount uint64
	// Transferring 只在回调转账钩子期间为 true
	Transferring bool
}

func (a *TokenAccount) Marshal() []byte {
	return types.NewWireWriter(tokenAccountDiscriminator).
		Pubkey(1, a.Mint).
		Pubkey(2, a.Owner).
		Uint(3, a.Amount).
		Pubkey(4, a.Delegate).
		Uint(5, a.DelegatedAmount).
		Bool(6, a.Transferring).
		Finish()
}

func UnmarshalTokenAccount(b []byte) (*TokenAccount, error) {
	body, err := types.SplitDiscriminator(b, tokenAccountDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	a := &TokenAccount{}
	err = types.WalkWire(body, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			a.Mint, err = f.Pubkey()
		case 2:
			a.Owner, err = f.Pubkey()
		case 3:
			a.Amount = f.Varint
		case 4:
			a.Delegate, err = f.Pubkey()
		case 5:
			a.DelegatedAmount = f.Varint
		case 6:
			a.Transferring = f.Bool()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return a, nil
}

// ========== ExtraAccountMetaList ==========

// SeedKind 额外账户地址的种子来源
type SeedKind uint8

const (
	SeedLiteral    SeedKind = 1 // 固定字节
	SeedAccountKey SeedKind = 2 // 钩子账户列表中第 Index 个账户的地址
)

type Seed struct {
	Kind    SeedKind
	Literal []byte
	Index   uint8
}

func LiteralSeed(b []byte) Seed   { return Seed{Kind: SeedLiteral, Literal: b} }
func AccountKeySeed(i uint8) Seed { return Seed{Kind: SeedAccountKey, Index: i} }

// ExtraAccountMeta 一个由钩子程序派生的额外账户
type ExtraAccountMeta struct {
	Seeds      []Seed
	IsWritable bool
}

// ExtraAccountMetaList 钩子程序为某个 mint 登记的额外账户列表，由钩子程序持有
type ExtraAccountMetaList struct {
	Metas []ExtraAccountMeta
}

func (l *ExtraAccountMetaList) Marshal() []byte {
	w := types.NewWireWriter(extraMetaListDiscriminator)
	for _, m := range l.Metas {
		mw := types.NewWireWriter()
		for _, s := range m.Seeds {
			mw.Bytes(1, types.NewWireWriter().
				Uint(1, uint64(s.Kind)).
				Bytes(2, s.Literal).
				Uint(3, uint64(s.Index)).
				Finish())
		}
		mw.Bool(2, m.IsWritable)
		w.Bytes(1, mw.Finish())
	}
	return w.Finish()
}

func UnmarshalExtraAccountMetaList(b []byte) (*ExtraAccountMetaList, error) {
	body, err := types.SplitDiscriminator(b, extraMetaListDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("decode extra account metas: %w", err)
	}
	l := &ExtraAccountMetaList{}
	err = types.WalkWire(body, func(f types.WireField) error {
		if f.Num != 1 {
			return nil
		}
		var m ExtraAccountMeta
		err := types.WalkWire(f.Raw, func(g types.WireField) error {
			switch g.Num {
			case 1:
				var s Seed
				err := types.WalkWire(g.Raw, func(h types.WireField) error {
					var err error
					switch h.Num {
					case 1:
						var k uint8
						k, err = h.Uint8()
						s.Kind = SeedKind(k)
					case 2:
						s.Literal = append([]byte(nil), h.Raw...)
					case 3:
						s.Index, err = h.Uint8()
					}
					return err
				})
				if err != nil {
					return err
				}
				m.Seeds = append(m.Seeds, s)
			case 2:
				m.IsWritable = g.Bool()
			}
			return nil
		})
		if err != nil {
			return err
		}
		l.Metas = append(l.Metas, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode extra account metas: %w", err)
	}
	return l, nil
}
