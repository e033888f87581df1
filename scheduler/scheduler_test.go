package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/compiler"
	"hookvault/config"
	"hookvault/db"
	"hookvault/types"
	"hookvault/vm"
)

var pingID = types.ProgramID("ping")

// pingProgram data[0]: 0 = 创建计数器 [payer, counter]；1 = 计数 [counter, signer?]
type pingProgram struct {
	sawSigner bool
}

func (p *pingProgram) ID() types.Pubkey { return pingID }
func (p *pingProgram) Name() string     { return "ping" }

func (p *pingProgram) Process(ctx *vm.InvokeContext, accounts []types.AccountMeta, data []byte) error {
	if data[0] == 0 {
		_, _, err := ctx.CreatePDA(accounts[0].Pubkey, [][]byte{[]byte("ping")}, []byte{0})
		return err
	}
	acc, err := ctx.Account(accounts[0].Pubkey)
	if err != nil {
		return err
	}
	if len(accounts) > 1 {
		p.sawSigner = ctx.IsSigner(accounts[1].Pubkey)
	}
	return ctx.SetData(accounts[0].Pubkey, []byte{acc.Data[0] + 1})
}

func pingCounter() types.Pubkey {
	addr, _, _ := types.FindProgramAddress([][]byte{[]byte("ping")}, pingID)
	return addr
}

type harness struct {
	t         *testing.T
	exec      *vm.Executor
	now       time.Time
	payer     *types.Keypair
	authority *types.Keypair
	queue     types.Pubkey
	ping      *pingProgram
	nonce     uint64
}

func newHarness(t *testing.T, capacity uint16) *harness {
	t.Helper()
	store, err := db.NewInMemoryManager()
	require.NoError(t, err)
	t.Cleanup(store.Close)

	h := &harness{t: t, now: time.Unix(1_700_000_000, 0), ping: &pingProgram{}}
	reg := vm.NewProgramRegistry()
	require.NoError(t, reg.Register(NewProgram()))
	require.NoError(t, reg.Register(h.ping))
	h.exec, err = vm.NewExecutor(store, reg, config.DefaultConfig().Runtime, vm.WithClock(func() time.Time { return h.now }))
	require.NoError(t, err)

	h.payer = h.keypair()
	h.authority = h.keypair()
	require.NoError(t, h.exec.Airdrop(h.payer.Pubkey(), 100_000_000_000))

	h.queue = TaskQueueAddress("test-queue")
	require.NoError(t, h.run([]types.Instruction{
		InitTaskQueue(h.payer.Pubkey(), h.payer.Pubkey(), "test-queue", capacity),
		AddQueueAuthority(h.payer.Pubkey(), h.payer.Pubkey(), h.queue, h.authority.Pubkey()),
		{
			ProgramID: pingID,
			Accounts:  []types.AccountMeta{types.WritableSigner(h.payer.Pubkey()), types.Writable(pingCounter())},
			Data:      []byte{0},
		},
	}, h.payer))
	return h
}

func (h *harness) keypair() *types.Keypair {
	kp, err := types.NewKeypair()
	require.NoError(h.t, err)
	return kp
}

func (h *harness) run(ixs []types.Instruction, signers ...*types.Keypair) error {
	h.nonce++
	tx := types.NewTransaction(h.nonce, ixs...)
	require.NoError(h.t, tx.Sign(signers...))
	_, err := h.exec.Execute(tx)
	return err
}

func (h *harness) counter() byte {
	acc, ok, err := h.exec.Account(pingCounter())
	require.NoError(h.t, err)
	require.True(h.t, ok)
	return acc.Data[0]
}

func (h *harness) queueState() *TaskQueue {
	acc, ok, err := h.exec.Account(h.queue)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	q, err := UnmarshalTaskQueue(acc.Data)
	require.NoError(h.t, err)
	return q
}

func pingArgs(t *testing.T, id uint16, trigger Trigger) (*QueueTaskArgs, []types.AccountMeta) {
	ct, remaining, err := compiler.Compile([]types.Instruction{{
		ProgramID: pingID,
		Accounts:  []types.AccountMeta{types.Writable(pingCounter())},
		Data:      []byte{1},
	}}, nil)
	require.NoError(t, err)
	return &QueueTaskArgs{ID: id, Trigger: trigger, Transaction: ct, Description: "ping"}, remaining
}

func (h *harness) queueTask(args *QueueTaskArgs, remaining []types.AccountMeta) error {
	return h.run([]types.Instruction{
		QueueTask(h.payer.Pubkey(), h.authority.Pubkey(), h.queue, args, remaining),
	}, h.payer, h.authority)
}

func TestQueueAndRunAfterTrigger(t *testing.T) {
	h := newHarness(t, 4)
	args, remaining := pingArgs(t, 7, TriggerAt(h.now.Unix()+60))
	require.NoError(t, h.queueTask(args, remaining))
	assert.Equal(t, uint16(1), h.queueState().Queued())

	payerAcc, _, err := h.exec.Account(h.payer.Pubkey())
	require.NoError(t, err)
	balanceAfterQueue := payerAcc.Lamports

	taskAddr := TaskAddress(h.queue, 7)
	acc, ok, err := h.exec.Account(taskAddr)
	require.NoError(t, err)
	require.True(t, ok)
	task, err := UnmarshalTask(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, "ping", task.Description)
	assert.Equal(t, h.payer.Pubkey(), task.RentRefund)

	crankKP := h.keypair()
	err = h.run([]types.Instruction{RunTask(crankKP.Pubkey(), taskAddr, task)}, crankKP)
	assert.ErrorIs(t, err, ErrTriggerNotReady)

	crank := NewCrank(h.exec, h.queue, crankKP, time.Second)
	ran, err := crank.Tick()
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Equal(t, byte(0), h.counter())

	h.now = h.now.Add(2 * time.Minute)
	ran, err = crank.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, byte(1), h.counter())

	_, ok, err = h.exec.Account(taskAddr)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, h.queueState().Queued())

	payerAcc, _, err = h.exec.Account(h.payer.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, balanceAfterQueue+acc.Lamports, payerAcc.Lamports)

	ran, err = crank.Tick()
	require.NoError(t, err)
	assert.Zero(t, ran)
}

func TestQueueTaskValidation(t *testing.T) {
	h := newHarness(t, 1)

	args, remaining := pingArgs(t, 1, TriggerNow())
	stranger := h.keypair()
	err := h.run([]types.Instruction{QueueTask(h.payer.Pubkey(), stranger.Pubkey(), h.queue, args, remaining)}, h.payer, stranger)
	assert.ErrorIs(t, err, ErrQueueAuthority)

	long := *args
	long.Description = strings.Repeat("x", MaxDescriptionLen+1)
	assert.ErrorIs(t, h.queueTask(&long, remaining), ErrDescriptionTooLong)

	bad := append([]types.AccountMeta(nil), remaining...)
	bad[0].IsWritable = false
	assert.ErrorIs(t, h.queueTask(args, bad), ErrDescriptorMismatch)

	require.NoError(t, h.queueTask(args, remaining))
	assert.ErrorIs(t, h.queueTask(args, remaining), ErrTaskIDInUse)

	second, remaining2 := pingArgs(t, 2, TriggerNow())
	assert.ErrorIs(t, h.queueTask(second, remaining2), ErrQueueFull)
}

func TestRunTaskSignsWithSchedulerSeeds(t *testing.T) {
	h := newHarness(t, 4)
	seeds := [][]byte{[]byte("custom"), h.queue.Bytes()}
	signer, bump, err := types.FindProgramAddress(seeds, ProgramID)
	require.NoError(t, err)

	ct, remaining, err := compiler.Compile([]types.Instruction{{
		ProgramID: pingID,
		Accounts:  []types.AccountMeta{types.Writable(pingCounter()), types.ReadOnlySigner(signer)},
		Data:      []byte{1},
	}}, [][][]byte{append(seeds, []byte{bump})})
	require.NoError(t, err)
	assert.False(t, remaining[0].IsSigner)

	reward := uint64(5000)
	args := &QueueTaskArgs{ID: 3, Trigger: TriggerNow(), Transaction: ct, CrankReward: &reward, Description: "signed ping"}
	require.NoError(t, h.queueTask(args, remaining))

	crankKP := h.keypair()
	ran, err := NewCrank(h.exec, h.queue, crankKP, time.Second).Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.True(t, h.ping.sawSigner)

	crankAcc, ok, err := h.exec.Account(crankKP.Pubkey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, reward, crankAcc.Lamports)
}

// queueBroken 入队一个重放必然失败的任务
func (h *harness) queueBroken(id uint16) {
	ct, remaining, err := compiler.Compile([]types.Instruction{{
		ProgramID: types.ProgramID("missing-program"),
		Accounts:  []types.AccountMeta{types.Writable(pingCounter())},
	}}, nil)
	require.NoError(h.t, err)
	require.NoError(h.t, h.queueTask(&QueueTaskArgs{ID: id, Trigger: TriggerNow(), Transaction: ct}, remaining))
}

// countingNode 记录 crank 提交的交易数
type countingNode struct {
	*vm.Executor
	submitted int
}

func (n *countingNode) Execute(tx *types.Transaction) (*vm.Receipt, error) {
	n.submitted++
	return n.Executor.Execute(tx)
}

func TestFailingTaskStaysQueued(t *testing.T) {
	h := newHarness(t, 4)
	h.queueBroken(9)

	crank := NewCrank(h.exec, h.queue, h.keypair(), time.Second)
	ran, err := crank.Tick()
	require.NoError(t, err)
	assert.Zero(t, ran)

	tasks, err := ListTasks(h.exec, h.queue)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, uint16(9), tasks[0].Task.ID)
}

func TestCrankDequeuesAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, 2)
	h.queueBroken(9)
	payerAcc, _, err := h.exec.Account(h.payer.Pubkey())
	require.NoError(t, err)
	before := payerAcc.Lamports
	taskAcc, _, err := h.exec.Account(TaskAddress(h.queue, 9))
	require.NoError(t, err)

	// payer 是队列的 update authority
	node := &countingNode{Executor: h.exec}
	crank := NewCrank(node, h.queue, h.payer, time.Second)
	crank.MaxAttempts = 2

	_, err = crank.Tick()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), h.queueState().Queued())

	_, err = crank.Tick()
	require.NoError(t, err)
	assert.Equal(t, 3, node.submitted)
	assert.Zero(t, h.queueState().Queued())
	_, ok, err := h.exec.Account(TaskAddress(h.queue, 9))
	require.NoError(t, err)
	assert.False(t, ok)
	payerAcc, _, err = h.exec.Account(h.payer.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, before+taskAcc.Lamports, payerAcc.Lamports)

	// 任务 ID 可以重新使用
	args, remaining := pingArgs(t, 9, TriggerNow())
	require.NoError(t, h.queueTask(args, remaining))
	ran, err := crank.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, byte(1), h.counter())
}

func TestCrankStopsRetryingWithoutDequeueRight(t *testing.T) {
	h := newHarness(t, 2)
	h.queueBroken(4)

	node := &countingNode{Executor: h.exec}
	crank := NewCrank(node, h.queue, h.keypair(), time.Second)
	crank.MaxAttempts = 2
	for i := 0; i < 5; i++ {
		_, err := crank.Tick()
		require.NoError(t, err)
	}
	// 两次 run_task 加一次被拒绝的 dequeue_task，之后不再提交
	assert.Equal(t, 3, node.submitted)
	assert.Equal(t, uint16(1), h.queueState().Queued())
}

func TestDequeueTaskAuthority(t *testing.T) {
	h := newHarness(t, 4)
	args, remaining := pingArgs(t, 1, TriggerAt(h.now.Unix()+3600))
	require.NoError(t, h.queueTask(args, remaining))
	taskAddr := TaskAddress(h.queue, 1)
	acc, _, err := h.exec.Account(taskAddr)
	require.NoError(t, err)
	task, err := UnmarshalTask(acc.Data)
	require.NoError(t, err)

	stranger := h.keypair()
	require.NoError(t, h.exec.Airdrop(stranger.Pubkey(), 1_000_000_000))
	err = h.run([]types.Instruction{DequeueTask(stranger.Pubkey(), taskAddr, task)}, stranger)
	assert.ErrorIs(t, err, ErrDequeueAuthority)

	// 登记过的队列授权者也可以出队，且不需要等触发
	require.NoError(t, h.run([]types.Instruction{DequeueTask(h.authority.Pubkey(), taskAddr, task)}, h.authority))
	assert.Zero(t, h.queueState().Queued())
	_, ok, err := h.exec.Account(taskAddr)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, byte(0), h.counter())
}

func TestCrankDoneAfterCancel(t *testing.T) {
	h := newHarness(t, 1)
	crank := NewCrank(h.exec, h.queue, h.keypair(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	crank.Start(ctx)
	cancel()
	select {
	case <-crank.Done():
	case <-time.After(time.Second):
		t.Fatal("crank did not stop")
	}
}

func TestTaskWireRoundTrip(t *testing.T) {
	args, _ := pingArgs(t, 11, TriggerAt(-5))
	reward := uint64(1)
	task := &Task{TaskQueue: TaskQueueAddress("q"), ID: 11, Trigger: args.Trigger, Transaction: args.Transaction,
		CrankReward: &reward, FreeTasks: 2, Description: "d", RentRefund: pingID, QueuedAt: 42}

	got, err := UnmarshalTask(task.Marshal())
	require.NoError(t, err)
	assert.Equal(t, task.Marshal(), got.Marshal())
	assert.Equal(t, int64(-5), got.Trigger.Timestamp)
	assert.True(t, IsTask(task.Marshal()))
	empty, err := (&TaskQueue{}).Marshal()
	require.NoError(t, err)
	assert.False(t, IsTask(empty))
}

func TestTaskQueueTracksIDs(t *testing.T) {
	q := NewTaskQueue(pingID, "q", 4)
	q.TaskIDs.Add(3)
	q.TaskIDs.Add(900)

	data, err := q.Marshal()
	require.NoError(t, err)
	got, err := UnmarshalTaskQueue(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), got.Queued())
	assert.Equal(t, []uint32{3, 900}, got.TaskIDs.ToArray())

	got.TaskIDs.Remove(3)
	got.TaskIDs.Remove(900)
	data, err = got.Marshal()
	require.NoError(t, err)
	empty, err := UnmarshalTaskQueue(data)
	require.NoError(t, err)
	assert.Zero(t, empty.Queued())
}
