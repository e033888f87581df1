package vm

import "hookvault/types"

// ========== 核心接口定义 ==========

// StateView 状态视图接口
type StateView interface {
	// 读/写/删某个 key 的状态；写入只写进这个视图，不直接落到底层 DB。
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte)
	Del(key string)
	// 快照点与回滚，用于跨程序调用失败时撤销被调方的写入。
	Snapshot() int
	Revert(snap int) error
	// 导出累积的写集，交给 DB 一次性落库。
	Diff() []WriteOp
	// 扫描指定前缀（overlay 优先于底层存储）
	Scan(prefix string) (map[string][]byte, error)
}

// Program 链上程序：按程序 ID 路由
type Program interface {
	ID() types.Pubkey
	Name() string
	// Process 在 ctx 上执行一条指令；返回错误即整笔交易失败
	Process(ctx *InvokeContext, accounts []types.AccountMeta, data []byte) error
}

// DBManager 数据库管理器接口
type DBManager interface {
	Get(key string) ([]byte, error)
	Scan(prefix string) (map[string][]byte, error)
	// Commit 原子落库一组写操作
	Commit(ops []WriteOp) error
}

// ReadThroughFn overlay 未命中时如何从底层存储读；不存在返回 (nil, nil)
type ReadThroughFn func(key string) ([]byte, error)

// ScanFn StateView 从底层存储做前缀扫描
type ScanFn func(prefix string) (map[string][]byte, error)
