package types

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// SignatureSize BIP-340 签名长度
const SignatureSize = 64

// Signature Schnorr 签名
type Signature [SignatureSize]byte

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Keypair secp256k1 密钥对，对外身份为 x-only 公钥
type Keypair struct {
	priv *btcec.PrivateKey
}

func NewKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSecret 从 32 字节私钥恢复
func KeypairFromSecret(secret []byte) (*Keypair, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("secret must be 32 bytes, got %d", len(secret))
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &Keypair{priv: priv}, nil
}

func (k *Keypair) Pubkey() Pubkey {
	var pk Pubkey
	copy(pk[:], schnorr.SerializePubKey(k.priv.PubKey()))
	return pk
}

func (k *Keypair) Secret() []byte {
	return k.priv.Serialize()
}

func (k *Keypair) Sign(msg Hash) (Signature, error) {
	var out Signature
	sig, err := schnorr.Sign(k.priv, msg[:])
	if err != nil {
		return out, err
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// VerifySignature 校验 pk 对 msg 的签名
func VerifySignature(pk Pubkey, msg Hash, sig Signature) bool {
	pub, err := schnorr.ParsePubKey(pk[:])
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	return s.Verify(msg[:], pub)
}
