package types

import "fmt"

// AccountMeta 指令引用的账户及其权限
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

func Writable(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk, IsWritable: true}
}

func ReadOnly(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk}
}

func WritableSigner(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: true, IsWritable: true}
}

func ReadOnlySigner(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: true}
}

// Instruction 对某个程序的一次调用
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

func (ix Instruction) marshal() []byte {
	w := NewWireWriter().Pubkey(1, ix.ProgramID)
	for _, m := range ix.Accounts {
		meta := NewWireWriter().
			Pubkey(1, m.Pubkey).
			Bool(2, m.IsSigner).
			Bool(3, m.IsWritable).
			Finish()
		w.Bytes(2, meta)
	}
	w.Bytes(3, ix.Data)
	return w.Finish()
}

func unmarshalInstruction(b []byte) (Instruction, error) {
	var ix Instruction
	err := WalkWire(b, func(f WireField) error {
		switch f.Num {
		case 1:
			pk, err := f.Pubkey()
			if err != nil {
				return err
			}
			ix.ProgramID = pk
		case 2:
			var m AccountMeta
			err := WalkWire(f.Raw, func(g WireField) error {
				switch g.Num {
				case 1:
					pk, err := g.Pubkey()
					if err != nil {
						return err
					}
					m.Pubkey = pk
				case 2:
					m.IsSigner = g.Bool()
				case 3:
					m.IsWritable = g.Bool()
				}
				return nil
			})
			if err != nil {
				return err
			}
			ix.Accounts = append(ix.Accounts, m)
		case 3:
			ix.Data = append([]byte(nil), f.Raw...)
		}
		return nil
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("decode instruction: %w", err)
	}
	return ix, nil
}
