package compiler

import (
	"fmt"

	"hookvault/types"
)

// Marshal 描述符的规范字节形式；同一描述符总是得到同一字节串
func (ct *CompiledTransaction) Marshal() []byte {
	w := types.NewWireWriter().
		Uint(1, uint64(ct.NumRwSigners)).
		Uint(2, uint64(ct.NumRoSigners)).
		Uint(3, uint64(ct.NumRw))
	for _, ci := range ct.Instructions {
		w.Bytes(4, types.NewWireWriter().
			Uint(1, uint64(ci.ProgramIDIndex)).
			Bytes(2, ci.Accounts).
			Bytes(3, ci.Data).
			Finish())
	}
	for _, seeds := range ct.SignerSeeds {
		sw := types.NewWireWriter()
		for _, s := range seeds {
			sw.Bytes(1, s)
		}
		w.Bytes(5, sw.Finish())
	}
	for _, pk := range ct.Accounts {
		w.Pubkey(6, pk)
	}
	return w.Finish()
}

func Unmarshal(b []byte) (*CompiledTransaction, error) {
	ct := &CompiledTransaction{}
	err := types.WalkWire(b, func(f types.WireField) error {
		var err error
		switch f.Num {
		case 1:
			ct.NumRwSigners, err = f.Uint8()
		case 2:
			ct.NumRoSigners, err = f.Uint8()
		case 3:
			ct.NumRw, err = f.Uint8()
		case 4:
			var ci CompiledInstruction
			err = types.WalkWire(f.Raw, func(g types.WireField) error {
				var gerr error
				switch g.Num {
				case 1:
					ci.ProgramIDIndex, gerr = g.Uint8()
				case 2:
					ci.Accounts = append([]uint8(nil), g.Raw...)
				case 3:
					ci.Data = append([]byte(nil), g.Raw...)
				}
				return gerr
			})
			ct.Instructions = append(ct.Instructions, ci)
		case 5:
			var seeds [][]byte
			err = types.WalkWire(f.Raw, func(g types.WireField) error {
				if g.Num == 1 {
					seeds = append(seeds, append([]byte(nil), g.Raw...))
				}
				return nil
			})
			ct.SignerSeeds = append(ct.SignerSeeds, seeds)
		case 6:
			var pk types.Pubkey
			pk, err = f.Pubkey()
			ct.Accounts = append(ct.Accounts, pk)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode compiled transaction: %w", err)
	}
	if n := int(ct.NumRwSigners) + int(ct.NumRoSigners) + int(ct.NumRw); n > len(ct.Accounts) {
		return nil, fmt.Errorf("%w: class counts %d exceed %d accounts", ErrUnknownAccount, n, len(ct.Accounts))
	}
	return ct, nil
}
