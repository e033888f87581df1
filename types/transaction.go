package types

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

var (
	ErrMissingSignature = errors.New("missing required signature")
	ErrBadSignature     = errors.New("signature verification failed")
)

// SignerSignature 一个签名者及其签名
type SignerSignature struct {
	Signer    Pubkey
	Signature Signature
}

// Transaction 原子执行单元：全部指令一起成功或一起失败
type Transaction struct {
	Nonce        uint64
	Instructions []Instruction
	Signatures   []SignerSignature
}

func NewTransaction(nonce uint64, ixs ...Instruction) *Transaction {
	return &Transaction{Nonce: nonce, Instructions: ixs}
}

// Message 待签名的规范编码（不含签名）
func (tx *Transaction) Message() []byte {
	w := NewWireWriter().Uint(1, tx.Nonce)
	for _, ix := range tx.Instructions {
		w.Bytes(2, ix.marshal())
	}
	return w.Finish()
}

// ID 交易 ID = sha3-256(Message)
func (tx *Transaction) ID() Hash {
	return Hash(sha3.Sum256(tx.Message()))
}

// Sign 追加签名；同一签名者重复签名会覆盖
func (tx *Transaction) Sign(kps ...*Keypair) error {
	id := tx.ID()
	for _, kp := range kps {
		sig, err := kp.Sign(id)
		if err != nil {
			return err
		}
		pk := kp.Pubkey()
		replaced := false
		for i := range tx.Signatures {
			if tx.Signatures[i].Signer == pk {
				tx.Signatures[i].Signature = sig
				replaced = true
			}
		}
		if !replaced {
			tx.Signatures = append(tx.Signatures, SignerSignature{Signer: pk, Signature: sig})
		}
	}
	return nil
}

// RequiredSigners 所有指令声明为签名者的账户
func (tx *Transaction) RequiredSigners() []Pubkey {
	seen := make(map[Pubkey]bool)
	var out []Pubkey
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.Pubkey] {
				seen[m.Pubkey] = true
				out = append(out, m.Pubkey)
			}
		}
	}
	return out
}

// VerifySignatures 校验全部签名并返回已签名集合
func (tx *Transaction) VerifySignatures() (map[Pubkey]bool, error) {
	id := tx.ID()
	signed := make(map[Pubkey]bool, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if !VerifySignature(s.Signer, id, s.Signature) {
			return nil, fmt.Errorf("%w: %s", ErrBadSignature, s.Signer)
		}
		signed[s.Signer] = true
	}
	for _, pk := range tx.RequiredSigners() {
		if !signed[pk] {
			return nil, fmt.Errorf("%w: %s", ErrMissingSignature, pk)
		}
	}
	return signed, nil
}

// Marshal 含签名的完整编码，用于网络传输
func (tx *Transaction) Marshal() []byte {
	w := NewWireWriter().Bytes(1, tx.Message())
	for _, s := range tx.Signatures {
		sig := NewWireWriter().Pubkey(1, s.Signer).Bytes(2, s.Signature[:]).Finish()
		w.Bytes(2, sig)
	}
	return w.Finish()
}

func UnmarshalTransaction(b []byte) (*Transaction, error) {
	tx := &Transaction{}
	err := WalkWire(b, func(f WireField) error {
		switch f.Num {
		case 1:
			return WalkWire(f.Raw, func(g WireField) error {
				switch g.Num {
				case 1:
					tx.Nonce = g.Varint
				case 2:
					ix, err := unmarshalInstruction(g.Raw)
					if err != nil {
						return err
					}
					tx.Instructions = append(tx.Instructions, ix)
				}
				return nil
			})
		case 2:
			var s SignerSignature
			err := WalkWire(f.Raw, func(g WireField) error {
				switch g.Num {
				case 1:
					pk, err := g.Pubkey()
					if err != nil {
						return err
					}
					s.Signer = pk
				case 2:
					if len(g.Raw) != SignatureSize {
						return fmt.Errorf("%w: signature length %d", ErrInvalidWireData, len(g.Raw))
					}
					copy(s.Signature[:], g.Raw)
				}
				return nil
			})
			if err != nil {
				return err
			}
			tx.Signatures = append(tx.Signatures, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}
