package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hookvault/config"
	"hookvault/logs"
)

func main() {
	configPath := flag.String("config", "", "TOML 配置文件路径，留空使用默认配置")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if !logs.SetLevelByName(cfg.Log.Level) {
		logs.Warn("unknown log level %q, keeping default", cfg.Log.Level)
	}
	if cfg.Log.NodeTag != "" {
		logs.SetNodeTag(cfg.Log.NodeTag)
	}

	node, err := initializeNode(cfg)
	if err != nil {
		logs.Error("failed to initialize node: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- node.serve(ctx) }()

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logs.Info("received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logs.Error("server stopped: %v", err)
		}
	}
	cancel()
	node.shutdown()
}
