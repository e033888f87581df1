package vm

import (
	"fmt"

	"hookvault/types"
)

// txEnv 一笔交易内所有调用帧共享的环境
type txEnv struct {
	registry *ProgramRegistry
	rent     Rent
	maxDepth int
	now      int64
	logs     []string
}

func (env *txEnv) logf(format string, v ...interface{}) {
	env.logs = append(env.logs, fmt.Sprintf(format, v...))
}

// invoke 建立一个调用帧并执行；失败时回滚本帧的全部写入
func (env *txEnv) invoke(sv StateView, ix types.Instruction, signers, writable map[types.Pubkey]bool, depth int) error {
	if depth > env.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrCallDepth, depth)
	}
	prog, ok := env.registry.Get(ix.ProgramID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	env.logf("program %s invoke [%d]", prog.Name(), depth)
	snap := sv.Snapshot()
	ctx := &InvokeContext{
		env:       env,
		sv:        sv,
		programID: ix.ProgramID,
		name:      prog.Name(),
		signers:   signers,
		writable:  writable,
		depth:     depth,
	}
	if err := prog.Process(ctx, ix.Accounts, ix.Data); err != nil {
		if rerr := sv.Revert(snap); rerr != nil {
			return rerr
		}
		env.logf("program %s failed: %v", prog.Name(), err)
		return err
	}
	env.logf("program %s success", prog.Name())
	return nil
}

// ========== InvokeContext ==========

// InvokeContext 单个调用帧：程序只能通过它读写状态
type InvokeContext struct {
	env       *txEnv
	sv        StateView
	programID types.Pubkey
	name      string
	signers   map[types.Pubkey]bool
	writable  map[types.Pubkey]bool
	depth     int
}

func (c *InvokeContext) ProgramID() types.Pubkey { return c.programID }

// Now 交易开始执行时的 unix 秒
func (c *InvokeContext) Now() int64 { return c.env.now }

func (c *InvokeContext) Depth() int { return c.depth }

func (c *InvokeContext) Rent() Rent { return c.env.rent }

func (c *InvokeContext) IsSigner(pk types.Pubkey) bool { return c.signers[pk] }

func (c *InvokeContext) IsWritable(pk types.Pubkey) bool { return c.writable[pk] }

// Log 追加到交易回执
func (c *InvokeContext) Log(format string, v ...interface{}) {
	c.env.logf("program %s log: %s", c.name, fmt.Sprintf(format, v...))
}

// Lookup 读取账户，显式返回是否存在
func (c *InvokeContext) Lookup(addr types.Pubkey) (*Account, bool, error) {
	return LoadAccount(c.sv, addr)
}

// Account 读取必须存在的账户
func (c *InvokeContext) Account(addr types.Pubkey) (*Account, error) {
	acc, ok, err := LoadAccount(c.sv, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

// SetData 覆盖账户数据；只有 owner 程序且账户被声明为可写时允许
func (c *InvokeContext) SetData(addr types.Pubkey, data []byte) error {
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	if acc.Owner != c.programID {
		return fmt.Errorf("%w: %s owned by %s", ErrExternalAccountChange, addr, acc.Owner)
	}
	if !c.writable[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	acc.Data = data
	return StoreAccount(c.sv, addr, acc)
}

// CreateAccount 以签名的新地址创建本程序拥有的账户，租金由 payer 支付
func (c *InvokeContext) CreateAccount(payer, addr types.Pubkey, data []byte) error {
	if !c.signers[addr] {
		return fmt.Errorf("%w: new account %s", ErrMissingSignature, addr)
	}
	return c.createAccount(payer, addr, data)
}

// CreatePDA 在 seeds 派生的地址上创建本程序拥有的账户，返回地址和 bump
func (c *InvokeContext) CreatePDA(payer types.Pubkey, seeds [][]byte, data []byte) (types.Pubkey, uint8, error) {
	addr, bump, err := types.FindProgramAddress(seeds, c.programID)
	if err != nil {
		return types.Pubkey{}, 0, err
	}
	if err := c.createAccount(payer, addr, data); err != nil {
		return types.Pubkey{}, 0, err
	}
	return addr, bump, nil
}

func (c *InvokeContext) createAccount(payer, addr types.Pubkey, data []byte) error {
	if !c.writable[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	_, exists, err := LoadAccount(c.sv, addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, addr)
	}
	if !c.signers[payer] {
		return fmt.Errorf("%w: payer %s", ErrMissingSignature, payer)
	}

	lamports := c.env.rent.MinimumBalance(len(data))
	if err := c.debit(payer, lamports); err != nil {
		return err
	}
	return StoreAccount(c.sv, addr, &Account{Owner: c.programID, Lamports: lamports, Data: data})
}

// TransferLamports 在两个可写账户之间转移 lamports
func (c *InvokeContext) TransferLamports(from, to types.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := c.debit(from, amount); err != nil {
		return err
	}
	return c.credit(to, amount)
}

// CloseAccount 删除本程序拥有的账户，全部 lamports 退给 refundTo
func (c *InvokeContext) CloseAccount(addr, refundTo types.Pubkey) error {
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	if acc.Owner != c.programID {
		return fmt.Errorf("%w: close %s", ErrExternalAccountChange, addr)
	}
	if !c.writable[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	if err := RemoveAccount(c.sv, addr); err != nil {
		return err
	}
	return c.credit(refundTo, acc.Lamports)
}

// debit 扣款：本程序拥有的账户，或已签名的系统账户
func (c *InvokeContext) debit(addr types.Pubkey, amount uint64) error {
	if !c.writable[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	acc, err := c.Account(addr)
	if err != nil {
		return err
	}
	switch {
	case acc.Owner == c.programID:
	case acc.Owner == SystemProgramID && c.signers[addr]:
	default:
		return fmt.Errorf("%w: debit %s", ErrExternalAccountChange, addr)
	}
	left, err := CheckedSub(acc.Lamports, amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientLamports, addr, acc.Lamports, amount)
	}
	acc.Lamports = left
	return StoreAccount(c.sv, addr, acc)
}

// credit 入账；账户不存在时建为系统账户
func (c *InvokeContext) credit(addr types.Pubkey, amount uint64) error {
	if !c.writable[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	acc, ok, err := LoadAccount(c.sv, addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &Account{Owner: SystemProgramID}
	}
	sum, err := CheckedAdd(acc.Lamports, amount)
	if err != nil {
		return err
	}
	acc.Lamports = sum
	return StoreAccount(c.sv, addr, acc)
}

// ========== 跨程序调用 ==========

// Invoke 跨程序调用，不附加派生地址签名
func (c *InvokeContext) Invoke(ix types.Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned 跨程序调用。被调方的签名者必须已在本帧签名，或是由本程序
// 以 signerSeeds 派生的地址；被调方的可写账户必须在本帧可写。
func (c *InvokeContext) InvokeSigned(ix types.Instruction, signerSeeds ...[][]byte) error {
	derived := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := types.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return fmt.Errorf("invoke signed: %w", err)
		}
		derived[addr] = true
	}

	signers := make(map[types.Pubkey]bool)
	writable := make(map[types.Pubkey]bool)
	for _, m := range ix.Accounts {
		if m.IsSigner {
			if !c.signers[m.Pubkey] && !derived[m.Pubkey] {
				return fmt.Errorf("%w: signer %s", ErrPrivilegeEscalation, m.Pubkey)
			}
			signers[m.Pubkey] = true
		}
		if m.IsWritable {
			if !c.writable[m.Pubkey] {
				return fmt.Errorf("%w: writable %s", ErrPrivilegeEscalation, m.Pubkey)
			}
			writable[m.Pubkey] = true
		}
	}
	return c.env.invoke(c.sv, ix, signers, writable, c.depth+1)
}
