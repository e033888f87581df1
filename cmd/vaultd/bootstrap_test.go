package main

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookvault/config"
	"hookvault/scheduler"
	"hookvault/types"
	"hookvault/vault"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.InMemory = true
	cfg.Database.Path = t.TempDir()
	cfg.Scheduler.TaskQueue = "vault-rotation"
	cfg.Scheduler.QueueCapacity = 8
	return cfg
}

func TestOperatorKeyFromHex(t *testing.T) {
	kp, err := types.NewKeypair()
	require.NoError(t, err)
	got, err := operatorKey(hex.EncodeToString(kp.Secret()))
	require.NoError(t, err)
	assert.Equal(t, kp.Pubkey(), got.Pubkey())

	_, err = operatorKey("zz")
	assert.Error(t, err)
}

func TestInitializeNodeSetsUpQueue(t *testing.T) {
	cfg := testConfig(t)
	member, err := types.NewKeypair()
	require.NoError(t, err)
	cfg.Genesis.Airdrops = map[string]uint64{member.Pubkey().String(): 5_000}

	node, err := initializeNode(cfg)
	require.NoError(t, err)
	defer node.DBManager.Close()
	require.NotNil(t, node.Crank)

	queue := scheduler.TaskQueueAddress(cfg.Scheduler.TaskQueue)
	acc, ok, err := node.Executor.Account(queue)
	require.NoError(t, err)
	require.True(t, ok)
	q, err := scheduler.UnmarshalTaskQueue(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint16(8), q.Capacity)
	assert.Equal(t, node.Operator.Pubkey(), q.UpdateAuthority)

	qa, _ := vault.QueueAuthorityAddress()
	_, ok, err = node.Executor.Account(scheduler.TaskQueueAuthorityAddress(queue, qa))
	require.NoError(t, err)
	assert.True(t, ok)

	acc, ok, err = node.Executor.Account(member.Pubkey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5_000), acc.Lamports)

	// 再次引导不重复创建，也不覆盖已有余额
	cfg.Genesis.Airdrops[member.Pubkey().String()] = 9_999
	require.NoError(t, applyGenesis(node.Executor, cfg.Genesis))
	_, err = ensureTaskQueue(node.Executor, node.Operator, cfg.Scheduler.TaskQueue, 8)
	require.NoError(t, err)
	acc, _, err = node.Executor.Account(member.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), acc.Lamports)
}

func TestApplyGenesisRejectsBadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.TaskQueue = ""
	node, err := initializeNode(cfg)
	require.NoError(t, err)
	defer node.DBManager.Close()
	assert.Nil(t, node.Crank)

	err = applyGenesis(node.Executor, config.GenesisConfig{Airdrops: map[string]uint64{"not-a-key": 1}})
	assert.Error(t, err)
}

func TestShutdownWaitsForCrank(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.CrankInterval = time.Millisecond
	cfg.Scheduler.MaxAttempts = 5
	node, err := initializeNode(cfg)
	require.NoError(t, err)
	require.NotNil(t, node.Crank)
	assert.Equal(t, 5, node.Crank.MaxAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	node.Crank.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()
	node.shutdown()

	select {
	case <-node.Crank.Done():
	default:
		t.Fatal("crank still running after shutdown")
	}
}
