package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

var (
	version    = "1.0.0"
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kafka-investigator",
	Short:         "Interactively step through, inspect, commit and export Kafka messages",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置，文件不存在时使用默认值
		var err error
		cfg, err = config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}

		// 2. 初始化日志
		if err := logger.Init(cfg.Log); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger.Info("kafka-investigator starting",
			zap.String("version", version),
			zap.String("command", cmd.Name()),
			zap.String("config", cfg.String()),
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "config file path")
	rootCmd.AddCommand(consumeCmd, profilesCmd, schemaCmd)
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
