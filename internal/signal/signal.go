package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

// exitFunc 第二次收到信号时调用
var exitFunc = os.Exit

// WaitForShutdown 收到SIGINT/SIGTERM时取消会话ctx，再次收到信号时强制退出
func WaitForShutdown(ctx context.Context, cancel context.CancelFunc, notify func(os.Signal)) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	waitForSignals(ctx, sigChan, cancel, notify)
}

func waitForSignals(ctx context.Context, sigChan <-chan os.Signal, cancel context.CancelFunc, notify func(os.Signal)) {
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if notify != nil {
			notify(sig)
		}
		cancel()
	case <-ctx.Done():
		logger.Debug("context cancelled")
		return
	}

	// 会话可能阻塞在拉取上，第二次信号直接退出
	sig := <-sigChan
	logger.Warn("received second signal, exiting", zap.String("signal", sig.String()))
	_ = logger.Sync()
	exitFunc(130)
}
