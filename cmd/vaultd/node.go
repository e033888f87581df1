package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"strings"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"hookvault/config"
	"hookvault/crt"
	"hookvault/db"
	"hookvault/handlers"
	"hookvault/logs"
	"hookvault/middleware"
	"hookvault/scheduler"
	"hookvault/stats"
	"hookvault/token"
	"hookvault/types"
	"hookvault/vault"
	"hookvault/vm"
)

// Node 一个运行中的金库节点
type Node struct {
	cfg            *config.Config
	DBManager      *db.Manager
	Executor       *vm.Executor
	Operator       *types.Keypair
	HandlerManager *handlers.HandlerManager
	Crank          *scheduler.Crank
	Server         *http.Server  // TCP TLS server
	HTTP3Server    *http3.Server // QUIC HTTP/3 server
	limiter        *middleware.RateLimiter
}

// newRegistry 注册节点运行的全部程序
func newRegistry() (*vm.ProgramRegistry, error) {
	reg := vm.NewProgramRegistry()
	for _, p := range []vm.Program{token.NewProgram(), scheduler.NewProgram(), vault.NewProgram()} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// initializeNode 打开数据库、装配执行器并完成启动引导
func initializeNode(cfg *config.Config) (*Node, error) {
	node := &Node{cfg: cfg}

	// 1. 数据库
	dbManager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, err
	}
	node.DBManager = dbManager

	// 2. 执行器
	reg, err := newRegistry()
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	latency := stats.NewLatencyRecorder(cfg.Runtime.LatencySamples)
	exec, err := vm.NewExecutor(dbManager, reg, cfg.Runtime, vm.WithLatencyRecorder(latency))
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	node.Executor = exec

	// 3. 运营者密钥、创世余额、任务队列
	node.Operator, err = operatorKey(cfg.Scheduler.CrankSecret)
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	if err := applyGenesis(exec, cfg.Genesis); err != nil {
		dbManager.Close()
		return nil, err
	}
	if cfg.Scheduler.TaskQueue != "" {
		queue, err := ensureTaskQueue(exec, node.Operator, cfg.Scheduler.TaskQueue, cfg.Scheduler.QueueCapacity)
		if err != nil {
			dbManager.Close()
			return nil, err
		}
		node.Crank = scheduler.NewCrank(exec, queue, node.Operator, cfg.Scheduler.CrankInterval)
		node.Crank.MaxAttempts = cfg.Scheduler.MaxAttempts
	}

	// 4. Handler 管理器
	node.HandlerManager = handlers.NewHandlerManager(exec, cfg.Scheduler.TaskQueue, cfg.Server.Port, latency)
	return node, nil
}

func (n *Node) tlsCertificate() (tls.Certificate, error) {
	certFile, keyFile := n.cfg.Server.CertFile, n.cfg.Server.KeyFile
	if certFile == "" || keyFile == "" {
		certFile = filepath.Join(n.cfg.Database.Path, "tls", "server.crt")
		keyFile = filepath.Join(n.cfg.Database.Path, "tls", "server.key")
	}
	validity := time.Duration(n.cfg.Server.CertValidityDays) * 24 * time.Hour
	return crt.LoadOrGenerate(certFile, keyFile, n.Operator.Pubkey(), validity)
}

// serve 启动 crank 和 HTTP/3 服务，阻塞到服务器关闭
func (n *Node) serve(ctx context.Context) error {
	mux := http.NewServeMux()
	n.HandlerManager.RegisterRoutes(mux)

	// 注册 pprof 路由 - 用于性能分析
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 应用中间件
	n.limiter = middleware.NewRateLimiter(n.cfg.Server.RateLimitRequests, n.cfg.Server.RateLimitWindow)
	n.limiter.StartCleanup(ctx, time.Minute)
	handler := n.limiter.Wrap(middleware.LimitBody(n.cfg.Server.MaxRequestBodySize, mux))

	cert, err := n.tlsCertificate()
	if err != nil {
		return fmt.Errorf("certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3", "http/1.1"},
	}
	quicConfig := &quic.Config{
		KeepAlivePeriod: n.cfg.Server.QUICKeepAlivePeriod,
		MaxIdleTimeout:  n.cfg.Server.QUICMaxIdleTimeout,
		Allow0RTT:       n.cfg.Server.QUICAllow0RTT,
	}

	addr := ":" + n.cfg.Server.Port
	n.HTTP3Server = &http3.Server{
		Addr:       addr,
		Handler:    handler,
		TLSConfig:  tlsConfig,
		QUICConfig: quicConfig,
	}
	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return fmt.Errorf("quic listen %s: %w", addr, err)
	}

	// TCP TLS 服务器，供不支持 QUIC 的客户端使用
	n.Server = &http.Server{
		Addr:      addr,
		Handler:   handler,
		TLSConfig: tlsConfig,
	}
	go func() {
		if err := n.Server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Error("[vaultd] TCP TLS server error: %v", err)
		}
	}()

	if n.Crank != nil {
		n.Crank.Start(ctx)
	}

	logs.Info("[vaultd] serving HTTP/3 on %s as %s", addr, n.Operator.Pubkey())
	if err := n.HTTP3Server.ServeListener(listener); err != nil && !isServerClosedErr(err) {
		return err
	}
	return nil
}

// shutdown 依次关闭服务器、等待 crank 退出、关闭数据库；调用前须先取消 serve 的 ctx
func (n *Node) shutdown() {
	if n.HTTP3Server != nil {
		if err := n.HTTP3Server.Close(); err != nil && !isServerClosedErr(err) {
			logs.Warn("[vaultd] failed to close HTTP/3 server: %v", err)
		}
	}
	if n.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.Server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Warn("[vaultd] failed to shutdown TCP server: %v", err)
		}
		cancel()
	}
	if n.Crank != nil {
		<-n.Crank.Done()
	}
	if n.DBManager != nil {
		n.DBManager.Close()
	}
	logs.Info("[vaultd] stopped")
}

func isServerClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, http.ErrServerClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "server closed") ||
		strings.Contains(msg, "use of closed network connection")
}
