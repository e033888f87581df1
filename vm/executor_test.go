package vm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/config"
	"hookvault/types"
)

// funcProgram 用闭包实现的测试程序
type funcProgram struct {
	id   types.Pubkey
	name string
	fn   func(ctx *InvokeContext, accounts []types.AccountMeta, data []byte) error
}

func (p *funcProgram) ID() types.Pubkey { return p.id }
func (p *funcProgram) Name() string     { return p.name }
func (p *funcProgram) Process(ctx *InvokeContext, accounts []types.AccountMeta, data []byte) error {
	return p.fn(ctx, accounts, data)
}

func newTestExecutor(t *testing.T, programs ...Program) (*Executor, *MockDB) {
	t.Helper()
	db := NewMockDB()
	reg := NewProgramRegistry()
	for _, p := range programs {
		require.NoError(t, reg.Register(p))
	}
	cfg := config.DefaultConfig().Runtime
	now := time.Unix(1_700_000_000, 0)
	e, err := NewExecutor(db, reg, cfg, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return e, db
}

func newFundedKeypair(t *testing.T, e *Executor) *types.Keypair {
	t.Helper()
	kp, err := types.NewKeypair()
	require.NoError(t, err)
	require.NoError(t, e.Airdrop(kp.Pubkey(), 1_000_000_000))
	return kp
}

func signedTx(t *testing.T, nonce uint64, ix types.Instruction, kps ...*types.Keypair) *types.Transaction {
	t.Helper()
	tx := types.NewTransaction(nonce, ix)
	require.NoError(t, tx.Sign(kps...))
	return tx
}

var counterSeeds = [][]byte{[]byte("counter")}

// counter 程序：0 = 创建计数器，1 = 写入后可选失败
func counterProgram() *funcProgram {
	id := types.ProgramID("counter")
	return &funcProgram{id: id, name: "counter", fn: func(ctx *InvokeContext, accounts []types.AccountMeta, data []byte) error {
		switch data[0] {
		case 0:
			_, _, err := ctx.CreatePDA(accounts[0].Pubkey, counterSeeds, []byte{0})
			return err
		case 1:
			if err := ctx.SetData(accounts[0].Pubkey, []byte{data[1]}); err != nil {
				return err
			}
			if data[2] == 1 {
				return errors.New("boom")
			}
			return nil
		}
		return ErrInvalidInstruction
	}}
}

func TestExecuteCreatesPDAAndChargesRent(t *testing.T) {
	prog := counterProgram()
	e, _ := newTestExecutor(t, prog)
	payer := newFundedKeypair(t, e)
	pda, _, err := types.FindProgramAddress(counterSeeds, prog.id)
	require.NoError(t, err)

	ix := types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer.Pubkey()), types.Writable(pda)},
		Data:      []byte{0},
	}
	receipt, err := e.Execute(signedTx(t, 1, ix, payer))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceed, receipt.Status)
	assert.Positive(t, receipt.WriteCount)

	acc, ok, err := e.Account(pda)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prog.id, acc.Owner)
	assert.Equal(t, e.Rent().MinimumBalance(1), acc.Lamports)

	payerAcc, _, err := e.Account(payer.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, 1_000_000_000-e.Rent().MinimumBalance(1), payerAcc.Lamports)

	owned, err := e.OwnedAccounts(prog.id)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, pda, owned[0].Address)

	// 同一地址不能再次创建
	_, err = e.Execute(signedTx(t, 2, ix, payer))
	assert.ErrorIs(t, err, ErrAccountAlreadyExists)
}

func TestFailedTransactionLeavesNoState(t *testing.T) {
	prog := counterProgram()
	e, _ := newTestExecutor(t, prog)
	payer := newFundedKeypair(t, e)
	pda, _, _ := types.FindProgramAddress(counterSeeds, prog.id)

	create := types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer.Pubkey()), types.Writable(pda)},
		Data:      []byte{0},
	}
	_, err := e.Execute(signedTx(t, 1, create, payer))
	require.NoError(t, err)

	write := func(v, fail byte) types.Instruction {
		return types.Instruction{
			ProgramID: prog.id,
			Accounts:  []types.AccountMeta{types.Writable(pda)},
			Data:      []byte{1, v, fail},
		}
	}
	tx := types.NewTransaction(2, write(7, 0), write(9, 1))
	receipt, err := e.Execute(tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction 1")
	assert.Equal(t, StatusFailed, receipt.Status)

	acc, _, err := e.Account(pda)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, acc.Data)

	stored, ok, err := e.Receipt(tx.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Zero(t, stored.WriteCount)

	_, err = e.Execute(tx)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSimulateDoesNotCommit(t *testing.T) {
	prog := counterProgram()
	e, db := newTestExecutor(t, prog)
	payer := newFundedKeypair(t, e)
	pda, _, _ := types.FindProgramAddress(counterSeeds, prog.id)
	commits := db.commits

	ix := types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer.Pubkey()), types.Writable(pda)},
		Data:      []byte{0},
	}
	receipt, err := e.Simulate(signedTx(t, 1, ix, payer))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceed, receipt.Status)
	assert.Equal(t, commits, db.commits)

	_, ok, err := e.Account(pda)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissingSignatureRejected(t *testing.T) {
	prog := counterProgram()
	e, _ := newTestExecutor(t, prog)
	payer := newFundedKeypair(t, e)
	pda, _, _ := types.FindProgramAddress(counterSeeds, prog.id)

	ix := types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer.Pubkey()), types.Writable(pda)},
		Data:      []byte{0},
	}
	_, err := e.Execute(types.NewTransaction(1, ix))
	assert.ErrorIs(t, err, types.ErrMissingSignature)
}

func TestWritesRequireOwnershipAndWritable(t *testing.T) {
	prog := counterProgram()
	e, _ := newTestExecutor(t, prog)
	payer := newFundedKeypair(t, e)
	pda, _, _ := types.FindProgramAddress(counterSeeds, prog.id)
	_, err := e.Execute(signedTx(t, 1, types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.WritableSigner(payer.Pubkey()), types.Writable(pda)},
		Data:      []byte{0},
	}, payer))
	require.NoError(t, err)

	// 系统账户不归 counter 所有
	_, err = e.Execute(types.NewTransaction(2, types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.Writable(payer.Pubkey())},
		Data:      []byte{1, 5, 0},
	}))
	assert.ErrorIs(t, err, ErrExternalAccountChange)

	_, err = e.Execute(types.NewTransaction(3, types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{types.ReadOnly(pda)},
		Data:      []byte{1, 5, 0},
	}))
	assert.ErrorIs(t, err, ErrAccountNotWritable)
}

func TestCrossProgramPrivileges(t *testing.T) {
	calleeID := types.ProgramID("callee")
	callerID := types.ProgramID("caller")
	var sawSigner bool
	callee := &funcProgram{id: calleeID, name: "callee", fn: func(ctx *InvokeContext, accounts []types.AccountMeta, _ []byte) error {
		sawSigner = ctx.IsSigner(accounts[0].Pubkey)
		return nil
	}}
	authority, bump, err := types.FindProgramAddress([][]byte{[]byte("auth")}, callerID)
	require.NoError(t, err)
	caller := &funcProgram{id: callerID, name: "caller", fn: func(ctx *InvokeContext, accounts []types.AccountMeta, data []byte) error {
		ix := types.Instruction{ProgramID: calleeID, Accounts: []types.AccountMeta{types.ReadOnlySigner(accounts[0].Pubkey)}}
		switch data[0] {
		case 0:
			return ctx.Invoke(ix)
		case 1:
			return ctx.InvokeSigned(ix, [][]byte{[]byte("auth"), {bump}})
		default:
			ix.Accounts = []types.AccountMeta{types.Writable(accounts[0].Pubkey)}
			return ctx.Invoke(ix)
		}
	}}
	e, _ := newTestExecutor(t, caller, callee)

	_, err = e.Execute(types.NewTransaction(1, types.Instruction{
		ProgramID: callerID, Accounts: []types.AccountMeta{types.ReadOnly(authority)}, Data: []byte{0},
	}))
	assert.ErrorIs(t, err, ErrPrivilegeEscalation)

	_, err = e.Execute(types.NewTransaction(2, types.Instruction{
		ProgramID: callerID, Accounts: []types.AccountMeta{types.ReadOnly(authority)}, Data: []byte{1},
	}))
	require.NoError(t, err)
	assert.True(t, sawSigner)

	_, err = e.Execute(types.NewTransaction(3, types.Instruction{
		ProgramID: callerID, Accounts: []types.AccountMeta{types.ReadOnly(authority)}, Data: []byte{2},
	}))
	assert.ErrorIs(t, err, ErrPrivilegeEscalation)
}

func TestCallDepthBounded(t *testing.T) {
	id := types.ProgramID("recurse")
	var self *funcProgram
	self = &funcProgram{id: id, name: "recurse", fn: func(ctx *InvokeContext, _ []types.AccountMeta, _ []byte) error {
		return ctx.Invoke(types.Instruction{ProgramID: self.id})
	}}
	e, _ := newTestExecutor(t, self)

	receipt, err := e.Execute(types.NewTransaction(1, types.Instruction{ProgramID: id}))
	assert.ErrorIs(t, err, ErrCallDepth)
	assert.NotEmpty(t, receipt.Logs)
}

func TestUnknownProgram(t *testing.T) {
	e, _ := newTestExecutor(t)
	_, err := e.Execute(types.NewTransaction(1, types.Instruction{ProgramID: types.ProgramID("nope")}))
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewProgramRegistry()
	require.NoError(t, reg.Register(counterProgram()))
	assert.Error(t, reg.Register(counterProgram()))
	assert.Equal(t, []string{"counter"}, reg.List())
}
