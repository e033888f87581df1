package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/config"
	"hookvault/db"
	"hookvault/scheduler"
	"hookvault/stats"
	"hookvault/token"
	"hookvault/types"
	"hookvault/utils/merkle"
	"hookvault/vault"
	"hookvault/vm"
)

const testQueue = "vault-rotation"

type fixture struct {
	t       *testing.T
	exec    *vm.Executor
	srv     *httptest.Server
	admin   *types.Keypair
	members []*types.Keypair
	tree    *merkle.Tree
	nonce   uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.NewInMemoryManager()
	require.NoError(t, err)
	t.Cleanup(store.Close)

	reg := vm.NewProgramRegistry()
	require.NoError(t, reg.Register(token.NewProgram()))
	require.NoError(t, reg.Register(scheduler.NewProgram()))
	require.NoError(t, reg.Register(vault.NewProgram()))
	now := time.Unix(1_700_000_000, 0)
	latency := stats.NewLatencyRecorder(64)
	exec, err := vm.NewExecutor(store, reg, config.DefaultConfig().Runtime,
		vm.WithClock(func() time.Time { return now }), vm.WithLatencyRecorder(latency))
	require.NoError(t, err)

	f := &fixture{t: t, exec: exec}
	f.admin = f.funded()
	var pubs []types.Pubkey
	for i := 0; i < 2; i++ {
		kp := f.funded()
		f.members = append(f.members, kp)
		pubs = append(pubs, kp.Pubkey())
	}
	f.tree, err = merkle.NewTree(pubs)
	require.NoError(t, err)

	mintKP, err := types.NewKeypair()
	require.NoError(t, err)
	admin := f.admin.Pubkey()
	qa, _ := vault.QueueAuthorityAddress()
	tx := f.tx([]types.Instruction{
		vault.Initialize(admin, mintKP.Pubkey(), f.tree.Root(), 1_000_000),
		vault.RegisterPolicyMetadata(admin, mintKP.Pubkey()),
		scheduler.InitTaskQueue(admin, admin, testQueue, 4),
		scheduler.AddQueueAuthority(admin, admin, scheduler.TaskQueueAddress(testQueue), qa),
	}, f.admin, mintKP)
	_, err = exec.Execute(tx)
	require.NoError(t, err)

	hm := NewHandlerManager(exec, testQueue, "0", latency)
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) funded() *types.Keypair {
	kp, err := types.NewKeypair()
	require.NoError(f.t, err)
	require.NoError(f.t, f.exec.Airdrop(kp.Pubkey(), 100_000_000_000))
	return kp
}

func (f *fixture) tx(ixs []types.Instruction, signers ...*types.Keypair) *types.Transaction {
	f.nonce++
	tx := types.NewTransaction(f.nonce, ixs...)
	require.NoError(f.t, tx.Sign(signers...))
	return tx
}

func (f *fixture) post(path string, body []byte) (int, TxResponse) {
	resp, err := http.Post(f.srv.URL+path, "application/x-protobuf", bytes.NewReader(body))
	require.NoError(f.t, err)
	defer resp.Body.Close()
	var out TxResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (f *fixture) get(path string, out interface{}) int {
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) joinTx(i int) *types.Transaction {
	proof, err := f.tree.Proof(i)
	require.NoError(f.t, err)
	return f.tx([]types.Instruction{vault.Join(f.members[i].Pubkey(), proof)}, f.members[i])
}

func TestSubmitJoinAndQueryMember(t *testing.T) {
	f := newFixture(t)
	member := f.members[0].Pubkey()

	var before MemberResponse
	require.Equal(t, http.StatusOK, f.get("/vault/member?address="+member.String(), &before))
	assert.False(t, before.Present)

	tx := f.joinTx(0)
	code, resp := f.post("/tx", tx.Marshal())
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, tx.ID().String(), resp.TxID)
	require.NotNil(t, resp.Receipt)
	assert.Equal(t, vm.StatusSucceed, resp.Receipt.Status)

	var after MemberResponse
	require.Equal(t, http.StatusOK, f.get("/vault/member?address="+member.String(), &after))
	assert.True(t, after.Present)
	assert.Equal(t, "0.000000", after.AmountDeposited)

	var receipt vm.Receipt
	require.Equal(t, http.StatusOK, f.get("/receipt?id="+tx.ID().String(), &receipt))
	assert.Equal(t, vm.StatusSucceed, receipt.Status)

	// 重放
	code, _ = f.post("/tx", tx.Marshal())
	assert.Equal(t, http.StatusConflict, code)
}

func TestSubmitRejections(t *testing.T) {
	f := newFixture(t)

	code, _ := f.post("/tx", []byte{0xff, 0xff, 0xff})
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Get(f.srv.URL + "/tx")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	// 用别人的证明入场：执行失败但回执落盘
	proof, err := f.tree.Proof(0)
	require.NoError(t, err)
	outsider := f.funded()
	bad := f.tx([]types.Instruction{vault.Join(outsider.Pubkey(), proof)}, outsider)
	code, body := f.post("/tx", bad.Marshal())
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, body.Receipt)
	assert.Equal(t, vm.StatusFailed, body.Receipt.Status)
	assert.Contains(t, body.Error, vault.ErrInvalidProof.Error())
}

func TestSimulateDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	tx := f.joinTx(1)
	code, resp := f.post("/simulate", tx.Marshal())
	require.Equal(t, http.StatusOK, code, resp.Error)

	var m MemberResponse
	require.Equal(t, http.StatusOK, f.get("/vault/member?address="+f.members[1].Pubkey().String(), &m))
	assert.False(t, m.Present)

	// 模拟过的交易仍可提交
	code, _ = f.post("/tx", tx.Marshal())
	assert.Equal(t, http.StatusOK, code)
}

func TestVaultConfigAndAccount(t *testing.T) {
	f := newFixture(t)

	var cfg VaultConfigResponse
	require.Equal(t, http.StatusOK, f.get("/vault/config", &cfg))
	assert.Equal(t, f.admin.Pubkey(), cfg.Config.Admin)
	assert.Equal(t, f.tree.Root(), cfg.Config.ActiveRoot)
	assert.False(t, cfg.Staged)
	assert.Equal(t, "1.000000", cfg.Holding)

	var acc AccountResponse
	require.Equal(t, http.StatusOK, f.get("/account?address="+cfg.Address.String(), &acc))
	assert.Equal(t, vault.ProgramID, acc.Owner)
	assert.Equal(t, "vault_config", acc.Kind)

	require.Equal(t, http.StatusOK, f.get("/account?address="+cfg.Config.Mint.String(), &acc))
	assert.Equal(t, "mint", acc.Kind)

	assert.Equal(t, http.StatusBadRequest, f.get("/account?address=not-base58!", nil))
	stranger, err := types.NewKeypair()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.get("/account?address="+stranger.Pubkey().String(), nil))
}

func TestTasksAndStatus(t *testing.T) {
	f := newFixture(t)
	queue := scheduler.TaskQueueAddress(testQueue)
	next := types.Hash{7}
	_, err := f.exec.Execute(f.tx([]types.Instruction{
		vault.Schedule(f.admin.Pubkey(), queue, next, 1, scheduler.TriggerAt(1_700_000_600)),
	}, f.admin))
	require.NoError(t, err)

	var tasks TasksResponse
	require.Equal(t, http.StatusOK, f.get("/tasks", &tasks))
	require.Equal(t, 1, tasks.Total)
	assert.Equal(t, uint16(1), tasks.Tasks[0].ID)
	assert.Equal(t, vault.ApplyDescription, tasks.Tasks[0].Description)
	assert.False(t, tasks.Tasks[0].Due)

	var qacc AccountResponse
	require.Equal(t, http.StatusOK, f.get("/account?address="+queue.String(), &qacc))
	assert.Equal(t, "task_queue", qacc.Kind)
	decoded, ok := qacc.Decoded.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{float64(1)}, decoded["task_ids"])

	var st StatusResponse
	require.Equal(t, http.StatusOK, f.get("/status", &st))
	assert.Equal(t, "ok", st.Status)
	assert.ElementsMatch(t, []string{"token", "scheduler", "vault"}, st.Programs)
	require.NotNil(t, st.Queue)
	assert.Equal(t, 1, st.Queue.Queued)
	assert.Equal(t, 4, st.Queue.Capacity)
	assert.Zero(t, st.Queue.Due)
	assert.Contains(t, st.Latency, "execute")
}
