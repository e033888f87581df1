package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"hookvault/client"
	"hookvault/scheduler"
	"hookvault/token"
	"hookvault/types"
	"hookvault/vault"
)

// proofReport merkletool 的输出
type proofReport struct {
	Root    types.Hash `json:"root"`
	Members []struct {
		Member types.Pubkey `json:"member"`
		Proof  []types.Hash `json:"proof"`
	} `json:"members"`
}

func (r *proofReport) proofFor(member types.Pubkey) ([]types.Hash, error) {
	for _, m := range r.Members {
		if m.Member == member {
			return m.Proof, nil
		}
	}
	return nil, fmt.Errorf("%s is not in the proof report", member)
}

func loadReport(path string) (*proofReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r proofReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &r, nil
}

func parseKey(s string) (*types.Keypair, error) {
	if s == "" {
		return nil, errors.New("missing -key")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return types.KeypairFromSecret(raw)
}

// submit 签名并提交，打印回执
func submit(ctx context.Context, c *client.Client, ixs []types.Instruction, signers ...*types.Keypair) error {
	tx := types.NewTransaction(uint64(time.Now().UnixNano()), ixs...)
	if err := tx.Sign(signers...); err != nil {
		return err
	}
	resp, err := c.SubmitTx(ctx, tx)
	if resp != nil {
		if perr := printJSON(resp); perr != nil {
			return perr
		}
	}
	return err
}

func runKeygen(_ context.Context, _ *client.Client, _ []string) error {
	kp, err := types.NewKeypair()
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"pubkey": kp.Pubkey().String(),
		"secret": hex.EncodeToString(kp.Secret()),
	})
}

func runStatus(ctx context.Context, c *client.Client, _ []string) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runConfig(ctx context.Context, c *client.Client, _ []string) error {
	cfg, err := c.VaultConfig(ctx)
	if err != nil {
		return err
	}
	return printJSON(cfg)
}

func runMember(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("member", flag.ContinueOnError)
	addr := fs.String("address", "", "成员公钥")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pk, err := types.ParsePubkey(*addr)
	if err != nil {
		return err
	}
	m, err := c.Member(ctx, pk)
	if err != nil {
		return err
	}
	return printJSON(m)
}

func runTasks(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	queue := fs.String("queue", "", "队列名，留空为节点默认队列")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tasks, err := c.Tasks(ctx, *queue)
	if err != nil {
		return err
	}
	return printJSON(tasks)
}

func runInitialize(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("initialize", flag.ContinueOnError)
	key := fs.String("key", "", "管理员私钥 hex")
	root := fs.String("root", "", "初始白名单根 hex")
	supply := fs.String("supply", "0", "初始铸造到托管账户的数量")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := parseKey(*key)
	if err != nil {
		return err
	}
	h, err := types.ParseHash(*root)
	if err != nil {
		return err
	}
	amt, err := token.ParseAmount(*supply, vault.Decimals)
	if err != nil {
		return err
	}
	mintKP, err := types.NewKeypair()
	if err != nil {
		return err
	}
	admin := kp.Pubkey()
	mint := mintKP.Pubkey()
	return submit(ctx, c, []types.Instruction{
		vault.Initialize(admin, mint, h, amt),
		vault.RegisterPolicyMetadata(admin, mint),
		token.InitializeAccount(admin, admin, mint),
	}, kp, mintKP)
}

func runJoin(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	key := fs.String("key", "", "成员私钥 hex")
	proofs := fs.String("proofs", "", "merkletool 输出的 JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := parseKey(*key)
	if err != nil {
		return err
	}
	report, err := loadReport(*proofs)
	if err != nil {
		return err
	}
	proof, err := report.proofFor(kp.Pubkey())
	if err != nil {
		return err
	}
	return submit(ctx, c, []types.Instruction{vault.Join(kp.Pubkey(), proof)}, kp)
}

// amountCommand deposit/withdraw 的公共部分
func amountCommand(ctx context.Context, c *client.Client, name string, args []string,
	build func(member, mint types.Pubkey, amount uint64) []types.Instruction) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	key := fs.String("key", "", "成员私钥 hex")
	amount := fs.String("amount", "", "金额，例如 1.5")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := parseKey(*key)
	if err != nil {
		return err
	}
	amt, err := token.ParseAmount(*amount, vault.Decimals)
	if err != nil {
		return err
	}
	if amt == 0 {
		return errors.New("amount must be positive")
	}
	cfg, err := c.VaultConfig(ctx)
	if err != nil {
		return err
	}
	return submit(ctx, c, build(kp.Pubkey(), cfg.Config.Mint, amt), kp)
}

func runDeposit(ctx context.Context, c *client.Client, args []string) error {
	return amountCommand(ctx, c, "deposit", args, vault.DepositInstructions)
}

func runWithdraw(ctx context.Context, c *client.Client, args []string) error {
	return amountCommand(ctx, c, "withdraw", args, vault.WithdrawInstructions)
}

func runSchedule(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	key := fs.String("key", "", "管理员私钥 hex")
	queue := fs.String("queue", "vault-rotation", "任务队列名")
	root := fs.String("root", "", "新白名单根 hex")
	id := fs.Uint("id", 0, "任务 ID")
	at := fs.Int64("at", 0, "触发时间（unix 秒），0 表示立即")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := parseKey(*key)
	if err != nil {
		return err
	}
	h, err := types.ParseHash(*root)
	if err != nil {
		return err
	}
	if *id > 0xffff {
		return fmt.Errorf("task id %d out of range", *id)
	}
	trigger := scheduler.TriggerNow()
	if *at > 0 {
		trigger = scheduler.TriggerAt(*at)
	}
	ix := vault.Schedule(kp.Pubkey(), scheduler.TaskQueueAddress(*queue), h, uint16(*id), trigger)
	return submit(ctx, c, []types.Instruction{ix}, kp)
}

func runUpdateRoot(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("update-root", flag.ContinueOnError)
	key := fs.String("key", "", "管理员私钥 hex")
	root := fs.String("root", "", "新白名单根 hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := parseKey(*key)
	if err != nil {
		return err
	}
	h, err := types.ParseHash(*root)
	if err != nil {
		return err
	}
	return submit(ctx, c, []types.Instruction{vault.UpdateRoot(kp.Pubkey(), h)}, kp)
}
