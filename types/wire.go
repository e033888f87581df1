package types

import (
	"crypto/sha256"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DiscriminatorSize 记录/指令前缀长度
const DiscriminatorSize = 8

// Discriminator sha256("namespace:name") 的前 8 字节
func Discriminator(namespace, name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// AccountDiscriminator 账户记录的类型前缀
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return Discriminator("account", name)
}

// SplitDiscriminator 校验并剥离前缀
func SplitDiscriminator(data []byte, want [DiscriminatorSize]byte) ([]byte, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("%w: data too short", ErrInvalidWireData)
	}
	var got [DiscriminatorSize]byte
	copy(got[:], data[:DiscriminatorSize])
	if got != want {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidWireData)
	}
	return data[DiscriminatorSize:], nil
}

// ========== WireWriter ==========

// WireWriter 以 protobuf 线格式追加字段，字段按调用顺序写出，输出确定
type WireWriter struct {
	buf []byte
}

func NewWireWriter(prefix ...[DiscriminatorSize]byte) *WireWriter {
	w := &WireWriter{}
	for _, p := range prefix {
		w.buf = append(w.buf, p[:]...)
	}
	return w
}

func (w *WireWriter) Uint(num protowire.Number, v uint64) *WireWriter {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
	return w
}

func (w *WireWriter) Int(num protowire.Number, v int64) *WireWriter {
	return w.Uint(num, protowire.EncodeZigZag(v))
}

func (w *WireWriter) Bool(num protowire.Number, v bool) *WireWriter {
	return w.Uint(num, protowire.EncodeBool(v))
}

func (w *WireWriter) Bytes(num protowire.Number, v []byte) *WireWriter {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
	return w
}

func (w *WireWriter) String(num protowire.Number, v string) *WireWriter {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
	return w
}

func (w *WireWriter) Pubkey(num protowire.Number, pk Pubkey) *WireWriter {
	return w.Bytes(num, pk[:])
}

func (w *WireWriter) Hash(num protowire.Number, h Hash) *WireWriter {
	return w.Bytes(num, h[:])
}

func (w *WireWriter) Finish() []byte {
	return w.buf
}

// ========== 解码 ==========

// WireField 单个已解析字段
type WireField struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Raw    []byte
}

func (f WireField) Int() int64 {
	return protowire.DecodeZigZag(f.Varint)
}

func (f WireField) Bool() bool {
	return protowire.DecodeBool(f.Varint)
}

func (f WireField) Pubkey() (Pubkey, error) {
	return PubkeyFromBytes(f.Raw)
}

func (f WireField) Hash() (Hash, error) {
	return HashFromBytes(f.Raw)
}

// Uint8 读取并检查不超过 255
func (f WireField) Uint8() (uint8, error) {
	if f.Varint > 0xff {
		return 0, fmt.Errorf("%w: field %d overflows u8", ErrInvalidWireData, f.Num)
	}
	return uint8(f.Varint), nil
}

// Uint16 读取并检查不超过 65535
func (f WireField) Uint16() (uint16, error) {
	if f.Varint > 0xffff {
		return 0, fmt.Errorf("%w: field %d overflows u16", ErrInvalidWireData, f.Num)
	}
	return uint16(f.Varint), nil
}

// WalkWire 依次回调每个字段；未知线型按规范跳过
func WalkWire(b []byte, fn func(f WireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidWireData, protowire.ParseError(n))
		}
		b = b[n:]

		f := WireField{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidWireData, protowire.ParseError(m))
			}
			f.Varint = v
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidWireData, protowire.ParseError(m))
			}
			f.Raw = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidWireData, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
