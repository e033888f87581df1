package main

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"hookvault/config"
	"hookvault/logs"
	"hookvault/scheduler"
	"hookvault/types"
	"hookvault/vault"
	"hookvault/vm"
)

// operatorFunding 运营者账户不存在时注入的 lamports，用于支付队列租金
const operatorFunding uint64 = 10_000_000_000

// operatorKey 从 hex 私钥恢复运营者密钥，为空则随机生成
func operatorKey(secret string) (*types.Keypair, error) {
	if secret == "" {
		kp, err := types.NewKeypair()
		if err != nil {
			return nil, err
		}
		logs.Warn("[vaultd] no operator secret configured, using ephemeral key %s", kp.Pubkey())
		return kp, nil
	}
	raw, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode operator secret: %w", err)
	}
	return types.KeypairFromSecret(raw)
}

// applyGenesis 给尚不存在的账户注入初始余额，已存在的跳过
func applyGenesis(exec *vm.Executor, genesis config.GenesisConfig) error {
	addrs := make([]string, 0, len(genesis.Airdrops))
	for a := range genesis.Airdrops {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	for _, a := range addrs {
		pk, err := types.ParsePubkey(a)
		if err != nil {
			return fmt.Errorf("genesis airdrop %q: %w", a, err)
		}
		if _, ok, err := exec.Account(pk); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := exec.Airdrop(pk, genesis.Airdrops[a]); err != nil {
			return fmt.Errorf("genesis airdrop %s: %w", pk, err)
		}
		logs.Info("[vaultd] genesis airdrop %d lamports to %s", genesis.Airdrops[a], pk)
	}
	return nil
}

// ensureTaskQueue 确保队列存在并已授权金库的 queue authority 入队
func ensureTaskQueue(exec *vm.Executor, operator *types.Keypair, name string, capacity uint16) (types.Pubkey, error) {
	queue := scheduler.TaskQueueAddress(name)
	qa, _ := vault.QueueAuthorityAddress()
	payer := operator.Pubkey()

	var ixs []types.Instruction
	if _, ok, err := exec.Account(queue); err != nil {
		return queue, err
	} else if !ok {
		ixs = append(ixs, scheduler.InitTaskQueue(payer, payer, name, capacity))
	}
	record := scheduler.TaskQueueAuthorityAddress(queue, qa)
	if _, ok, err := exec.Account(record); err != nil {
		return queue, err
	} else if !ok {
		ixs = append(ixs, scheduler.AddQueueAuthority(payer, payer, queue, qa))
	}
	if len(ixs) == 0 {
		return queue, nil
	}

	if _, ok, err := exec.Account(payer); err != nil {
		return queue, err
	} else if !ok {
		if err := exec.Airdrop(payer, operatorFunding); err != nil {
			return queue, err
		}
	}
	tx := types.NewTransaction(uint64(time.Now().UnixNano()), ixs...)
	if err := tx.Sign(operator); err != nil {
		return queue, err
	}
	if _, err := exec.Execute(tx); err != nil {
		return queue, fmt.Errorf("set up task queue %q: %w", name, err)
	}
	logs.Info("[vaultd] task queue %q at %s authorized for %s", name, queue, qa)
	return queue, nil
}
