// keys/keys.go
// 统一的 Key 定义包，供 VM 和 DB 模块共同使用
package keys

import (
	"strings"

	"hookvault/types"
)

// ===================== 版本控制 =====================
// 全局 Key 版本前缀（例如 "v1" → 产出 "v1_<key>"）。
const KeyVersion = "v1"

func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 去掉版本前缀
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	return strings.TrimPrefix(prefixed, KeyVersion+"_")
}

// ===================== 账户 =====================

// KeyAccount 账户数据（owner / lamports / data）
// 例：v1_account_<base58>
func KeyAccount(addr types.Pubkey) string {
	return withVer("account_" + addr.String())
}

func KeyAccountPrefix() string {
	return withVer("account_")
}

// AccountFromKey 从账户 key 解析地址
func AccountFromKey(key string) (types.Pubkey, bool) {
	rest := strings.TrimPrefix(key, KeyAccountPrefix())
	if rest == key {
		return types.Pubkey{}, false
	}
	pk, err := types.ParsePubkey(rest)
	if err != nil {
		return types.Pubkey{}, false
	}
	return pk, true
}

// KeyOwnerIndex 归属索引：按 owner 前缀扫描其名下账户
// 例：v1_owner_<owner>_<addr>
func KeyOwnerIndex(owner, addr types.Pubkey) string {
	return withVer("owner_" + owner.String() + "_" + addr.String())
}

func KeyOwnerIndexPrefix(owner types.Pubkey) string {
	return withVer("owner_" + owner.String() + "_")
}

// ===================== 交易 =====================

// KeyReceipt 交易回执
// 例：v1_receipt_<txid hex>
func KeyReceipt(txID types.Hash) string {
	return withVer("receipt_" + txID.String())
}

func KeyReceiptPrefix() string {
	return withVer("receipt_")
}

// ===================== 分类 =====================

// KeyCategory 数据分类，写集里带上便于追踪
type KeyCategory string

const (
	CategoryAccount KeyCategory = "account"
	CategoryIndex   KeyCategory = "index"
	CategoryReceipt KeyCategory = "receipt"
	CategoryOther   KeyCategory = "other"
)

// CategorizeKey 根据前缀判断分类
func CategorizeKey(key string) KeyCategory {
	switch {
	case strings.HasPrefix(key, KeyAccountPrefix()):
		return CategoryAccount
	case strings.HasPrefix(key, withVer("owner_")):
		return CategoryIndex
	case strings.HasPrefix(key, KeyReceiptPrefix()):
		return CategoryReceipt
	default:
		return CategoryOther
	}
}
