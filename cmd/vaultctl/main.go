package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"hookvault/client"
	"hookvault/config"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, c *client.Client, args []string) error
}

var commands = []command{
	{"keygen", "生成新的密钥对", runKeygen},
	{"status", "节点状态", runStatus},
	{"config", "金库配置", runConfig},
	{"member", "-address <pubkey> 成员准入状态", runMember},
	{"tasks", "[-queue name] 队列任务", runTasks},
	{"initialize", "-key <hex> -root <hex> [-supply n] 部署金库并登记转账钩子", runInitialize},
	{"join", "-key <hex> -proofs <report.json> 凭证明入场", runJoin},
	{"deposit", "-key <hex> -amount <x.y> 存入", runDeposit},
	{"withdraw", "-key <hex> -amount <x.y> 取出", runWithdraw},
	{"schedule", "-key <hex> -queue name -root <hex> -id n [-at unix] 延迟轮换白名单根", runSchedule},
	{"update-root", "-key <hex> -root <hex> 立即替换白名单根", runUpdateRoot},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: vaultctl [-node host:port] [-timeout d] <command> [flags]\n\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.usage)
	}
}

func main() {
	node := flag.String("node", "127.0.0.1:6000", "节点地址")
	timeout := flag.Duration("timeout", 10*time.Second, "请求超时")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		hc := client.NewHTTP3Client(config.DefaultConfig().Server, *timeout)
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err := cmd.run(ctx, client.New(*node, hc), flag.Args()[1:])
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(2)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
