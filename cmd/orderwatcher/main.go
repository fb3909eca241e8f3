package main

import (
	"context"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/orderwatch/internal/chain"
	"github.com/betbot/orderwatch/internal/orderstate"
	"github.com/betbot/orderwatch/internal/orderwatch"
	"github.com/betbot/orderwatch/internal/relayer"
	"github.com/betbot/orderwatch/internal/server"
	"github.com/betbot/orderwatch/pkg/config"
	"github.com/betbot/orderwatch/pkg/logger"
	"github.com/betbot/orderwatch/pkg/units"
)

// collateralDecimals 抵押品代币精度（USDC 类代币）
const collateralDecimals = 6

func main() {
	// 加载 .env（尽力而为，缺失则直接用真实环境变量）
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "配置文件路径 (.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		logrus.Fatalf("初始化日志失败: %v", err)
	}

	caller, client, err := chain.Dial(cfg.RPCURL)
	if err != nil {
		logger.Errorf("连接节点失败: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 把日志过滤范围收窄到结算合约及其关联地址
	contract := common.HexToAddress(cfg.ContractAddress)
	query, err := buildFilterQuery(ctx, caller, contract)
	if err != nil {
		logger.Errorf("解析合约关联地址失败: %v", err)
		os.Exit(1)
	}

	watcher, err := orderwatch.New(orderwatch.Config{
		ChainID:                 big.NewInt(cfg.ChainID),
		Query:                   query,
		EventPollInterval:       cfg.PollInterval,
		ExpirationCheckInterval: cfg.ExpirationCheck,
		ExpirationMargin:        cfg.ExpirationMargin,
		CleanupInterval:         cfg.CleanupInterval,
	}, caller, client)
	if err != nil {
		logger.Errorf("创建监视器失败: %v", err)
		os.Exit(1)
	}

	if _, err := watcher.Subscribe(ctx, logState); err != nil {
		logger.Errorf("订阅失败: %v", err)
		os.Exit(1)
	}
	defer func() { _ = watcher.Unsubscribe() }()

	// 先灌入存量订单，再接上实时订单流，中间的窗口由清理任务兜底
	if cfg.RelayerURL != "" {
		rc := relayer.NewClient(cfg.RelayerURL)
		if added, err := rc.SeedWatcher(ctx, watcher); err != nil {
			logger.Warnf("灌入初始订单失败: %v", err)
		} else {
			logger.Infof("初始订单集合: %d 笔", added)
		}
	}

	var stream *relayer.Stream
	if cfg.RelayerWSURL != "" {
		stream = relayer.NewStream(cfg.RelayerWSURL, watcher)
		if err := stream.Connect(ctx); err != nil {
			logger.Warnf("连接订单流失败: %v", err)
			stream = nil
		}
	}
	if stream != nil {
		defer stream.Close()
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewStatusServer(watcher).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("状态服务监听 %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("状态服务错误: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"chainID":  cfg.ChainID,
		"contract": cfg.ContractAddress,
	}).Info("订单状态监视器已启动")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	logger.Infof("订单状态监视器已停止")
}

// buildFilterQuery 结算合约及其关联地址的日志过滤范围
func buildFilterQuery(ctx context.Context, caller chain.Caller, contract common.Address) (ethereum.FilterQuery, error) {
	pool, err := caller.CollateralPoolAddress(ctx, contract)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	colToken, err := caller.CollateralTokenAddress(ctx, contract)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	feeToken, err := caller.FeeTokenAddress(ctx, contract)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{contract, pool, colToken, feeToken},
	}, nil
}

// logState 订阅回调：状态变更打日志
func logState(state *orderstate.OrderState, err error) {
	if err != nil {
		logger.Errorf("订阅终止: %v", err)
		return
	}

	fields := logrus.Fields{
		"orderHash": state.OrderHash.Hex(),
		"valid":     state.Valid,
	}
	if state.Valid && state.RelevantState != nil {
		fields["remainingQty"] = bigString(state.RelevantState.RemainingMakerFillableQty)
		fields["collateral"] = units.FormatBaseUnits(state.RelevantState.MakerCollateralBalance, collateralDecimals)
		fields["needed"] = units.FormatBaseUnits(state.RelevantState.NeededCollateral, collateralDecimals)
	}
	if !state.Valid {
		fields["reason"] = state.Reason.String()
	}
	logger.WithFields(fields).Info("订单状态变更")
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
