package vm

import "errors"

// ========== 错误定义 ==========

var (
	ErrNilTx                 = errors.New("nil transaction")
	ErrEmptyTransaction      = errors.New("transaction has no instructions")
	ErrInvalidSnapshot       = errors.New("invalid snapshot index")
	ErrAlreadyProcessed      = errors.New("transaction already processed")
	ErrUnknownProgram        = errors.New("unknown program")
	ErrMissingSignature      = errors.New("missing required signature")
	ErrPrivilegeEscalation   = errors.New("cross-program invocation escalates privilege")
	ErrCallDepth             = errors.New("max call depth exceeded")
	ErrAccountNotWritable    = errors.New("account not declared writable")
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountAlreadyExists  = errors.New("account already in use")
	ErrExternalAccountChange = errors.New("program modified an account it does not own")
	ErrInsufficientLamports  = errors.New("insufficient lamports")
	ErrInvalidAccountData    = errors.New("invalid account data")
	ErrInvalidInstruction    = errors.New("invalid instruction data")
	ErrNotEnoughAccounts     = errors.New("not enough account keys")
)

// ========== 基础类型定义 ==========

// WriteOp “要怎么改状态”的清单
type WriteOp struct {
	Key      string // 完整的 key（包括命名空间前缀）
	Value    []byte // 序列化后的值
	Del      bool   // true 表示删除操作
	Category string // account / index / receipt，便于追踪和调试
}

// Receipt 记录执行结果
type Receipt struct {
	TxID       string   `json:"tx_id"`
	Status     string   `json:"status"` // "SUCCEED" or "FAILED"
	Error      string   `json:"error,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	Logs       []string `json:"logs,omitempty"`
	WriteCount int      `json:"write_count"`
}

const (
	StatusSucceed = "SUCCEED"
	StatusFailed  = "FAILED"
)
