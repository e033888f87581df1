package vm

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"hookvault/config"
	"hookvault/keys"
	"hookvault/logs"
	"hookvault/stats"
	"hookvault/types"
)

// Executor 交易执行器：串行执行，成功时一次性提交写集
type Executor struct {
	mu       sync.Mutex
	db       DBManager
	registry *ProgramRegistry
	rent     Rent
	maxDepth int

	recentTx *lru.Cache // 最近处理过的交易 ID，避免频繁查 DB
	clock    func() time.Time
	latency  *stats.LatencyRecorder
}

// Option 执行器可选项
type Option func(*Executor)

// WithClock 注入时钟（测试用）
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithLatencyRecorder 记录执行耗时
func WithLatencyRecorder(r *stats.LatencyRecorder) Option {
	return func(e *Executor) { e.latency = r }
}

func NewExecutor(db DBManager, registry *ProgramRegistry, cfg config.RuntimeConfig, opts ...Option) (*Executor, error) {
	recent, err := lru.New(cfg.RecentTxCacheSize)
	if err != nil {
		return nil, fmt.Errorf("recent tx cache: %w", err)
	}
	e := &Executor{
		db:       db,
		registry: registry,
		rent:     Rent{LamportsPerByte: cfg.RentLamportsPerByte},
		maxDepth: cfg.MaxCallDepth,
		recentTx: recent,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Executor) Registry() *ProgramRegistry { return e.registry }

func (e *Executor) Rent() Rent { return e.rent }

func (e *Executor) Now() time.Time { return e.clock() }

func (e *Executor) newStateView() StateView {
	return NewStateView(e.db.Get, e.db.Scan)
}

// ========== 执行 ==========

// Execute 执行并提交一笔交易。失败的交易只落回执，状态不变。
func (e *Executor) Execute(tx *types.Transaction) (*Receipt, error) {
	start := time.Now()
	defer func() { e.latency.Record("execute", time.Since(start)) }()

	signed, err := e.precheck(tx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := tx.ID()
	seen, err := e.processed(id)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	sv, receipt, runErr := e.run(tx, signed)

	var ops []WriteOp
	if runErr == nil {
		ops = sv.Diff()
	}
	receipt.WriteCount = len(ops)
	raw, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	ops = append(ops, WriteOp{
		Key:      keys.KeyReceipt(id),
		Value:    raw,
		Category: string(keys.CategoryReceipt),
	})
	if err := e.db.Commit(ops); err != nil {
		logs.Error("[Executor] commit tx %s: %v", id, err)
		return nil, fmt.Errorf("commit: %w", err)
	}
	e.recentTx.Add(id, struct{}{})

	if runErr != nil {
		logs.Debug("[Executor] tx %s failed: %v", id, runErr)
		return receipt, runErr
	}
	logs.Trace("[Executor] tx %s committed %d writes", id, receipt.WriteCount)
	return receipt, nil
}

// Simulate 执行但不提交
func (e *Executor) Simulate(tx *types.Transaction) (*Receipt, error) {
	start := time.Now()
	defer func() { e.latency.Record("simulate", time.Since(start)) }()

	signed, err := e.precheck(tx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sv, receipt, runErr := e.run(tx, signed)
	if runErr == nil {
		receipt.WriteCount = len(sv.Diff())
	}
	return receipt, runErr
}

func (e *Executor) precheck(tx *types.Transaction) (map[types.Pubkey]bool, error) {
	if tx == nil {
		return nil, ErrNilTx
	}
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	return tx.VerifySignatures()
}

func (e *Executor) processed(id types.Hash) (bool, error) {
	if _, ok := e.recentTx.Get(id); ok {
		return true, nil
	}
	raw, err := e.db.Get(keys.KeyReceipt(id))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// run 在一个全新 overlay 上依次执行所有指令
func (e *Executor) run(tx *types.Transaction, signed map[types.Pubkey]bool) (StateView, *Receipt, error) {
	now := e.clock()
	env := &txEnv{
		registry: e.registry,
		rent:     e.rent,
		maxDepth: e.maxDepth,
		now:      now.Unix(),
	}
	sv := e.newStateView()
	receipt := &Receipt{
		TxID:      tx.ID().String(),
		Status:    StatusSucceed,
		Timestamp: now.Unix(),
	}

	for i, ix := range tx.Instructions {
		if err := e.runInstruction(env, sv, ix, signed); err != nil {
			receipt.Status = StatusFailed
			receipt.Error = err.Error()
			receipt.Logs = env.logs
			return sv, receipt, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	receipt.Logs = env.logs
	return sv, receipt, nil
}

func (e *Executor) runInstruction(env *txEnv, sv StateView, ix types.Instruction, signed map[types.Pubkey]bool) error {
	signers := make(map[types.Pubkey]bool)
	writable := make(map[types.Pubkey]bool)
	for _, m := range ix.Accounts {
		if m.IsSigner {
			if !signed[m.Pubkey] {
				return fmt.Errorf("%w: %s", ErrMissingSignature, m.Pubkey)
			}
			signers[m.Pubkey] = true
		}
		if m.IsWritable {
			writable[m.Pubkey] = true
		}
	}
	return env.invoke(sv, ix, signers, writable, 1)
}

// ========== 状态管理 ==========

// Airdrop 直接为地址注入 lamports（创世/测试用），账户不存在时建为系统账户
func (e *Executor) Airdrop(addr types.Pubkey, lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sv := e.newStateView()
	acc, ok, err := LoadAccount(sv, addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &Account{Owner: SystemProgramID}
	}
	sum, err := CheckedAdd(acc.Lamports, lamports)
	if err != nil {
		return err
	}
	acc.Lamports = sum
	if err := StoreAccount(sv, addr, acc); err != nil {
		return err
	}
	return e.db.Commit(sv.Diff())
}

// Account 读取已提交的账户
func (e *Executor) Account(addr types.Pubkey) (*Account, bool, error) {
	return LoadAccount(e.newStateView(), addr)
}

// OwnedAccounts 列出某程序拥有的全部账户，按地址排序
func (e *Executor) OwnedAccounts(owner types.Pubkey) ([]KeyedAccount, error) {
	sv := e.newStateView()
	idx, err := sv.Scan(keys.KeyOwnerIndexPrefix(owner))
	if err != nil {
		return nil, err
	}

	out := make([]KeyedAccount, 0, len(idx))
	for _, v := range idx {
		addr, err := types.PubkeyFromBytes(v)
		if err != nil {
			return nil, err
		}
		acc, ok, err := LoadAccount(sv, addr)
		if err != nil {
			return nil, err
		}
		if !ok || acc.Owner != owner {
			continue
		}
		out = append(out, KeyedAccount{Address: addr, Account: acc})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Compare(out[j].Address) < 0
	})
	return out, nil
}

// Receipt 查询交易回执
func (e *Executor) Receipt(id types.Hash) (*Receipt, bool, error) {
	raw, err := e.db.Get(keys.KeyReceipt(id))
	if err != nil || raw == nil {
		return nil, false, err
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}
