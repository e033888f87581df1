package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
)

// ========== 常量 ==========

const (
	// PubkeySize 身份/地址长度
	PubkeySize = 32
	// HashSize 摘要长度
	HashSize = 32
	// MaxSeeds 派生地址允许的最大种子数（含 bump）
	MaxSeeds = 16
	// MaxSeedLen 单个种子的最大长度
	MaxSeedLen = 32
)

const pdaMarker = "ProgramDerivedAddress"

// ========== 错误定义 ==========

var (
	ErrInvalidPubkey   = errors.New("invalid pubkey")
	ErrInvalidHash     = errors.New("invalid hash")
	ErrMaxSeedLength   = errors.New("seed exceeds max length")
	ErrTooManySeeds    = errors.New("too many seeds")
	ErrInvalidSeeds    = errors.New("seeds derive an on-curve address")
	ErrNoViableBump    = errors.New("unable to find a viable bump")
	ErrInvalidWireData = errors.New("invalid wire data")
)

// ========== Pubkey ==========

// Pubkey 32 字节身份：签名者为 x-only secp256k1 公钥，派生地址保证不在曲线上。
type Pubkey [PubkeySize]byte

// ZeroPubkey 空身份，作为 "未设置" 使用
var ZeroPubkey Pubkey

func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePubkey 解析 base58 字符串
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	return PubkeyFromBytes(raw)
}

func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// ProgramID 由名字生成稳定的程序标识
func ProgramID(name string) Pubkey {
	return Pubkey(sha256.Sum256([]byte("hookvault/program/" + name)))
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeySize)
	copy(out, p[:])
	return out
}

func (p Pubkey) IsZero() bool {
	return p == ZeroPubkey
}

func (p Pubkey) Compare(o Pubkey) int {
	return bytes.Compare(p[:], o[:])
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// IsOnCurve 判断 32 字节是否是合法的 secp256k1 x 坐标。
// 派生地址必须不在曲线上，这样任何私钥都无法为其签名。
func IsOnCurve(p Pubkey) bool {
	var x, y secp256k1.FieldVal
	if overflow := x.SetByteSlice(p[:]); overflow {
		return false
	}
	return secp256k1.DecompressY(&x, false, &y)
}

// CreateProgramAddress 按种子和程序 ID 计算派生地址
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return Pubkey{}, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return Pubkey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress 从 255 往下搜索第一个可用的 bump
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Pubkey{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// ========== Hash ==========

// Hash 32 字节摘要（Merkle 根、交易 ID）
type Hash [HashSize]byte

// ZeroHash 全零摘要，"未暂存" 哨兵值
var ZeroHash Hash

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: length %d", ErrInvalidHash, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return HashFromBytes(raw)
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	v, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}
