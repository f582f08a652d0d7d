package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kafka-investigator/kafka-investigator/internal/console"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/export"
	"github.com/kafka-investigator/kafka-investigator/internal/schema"
	"github.com/kafka-investigator/kafka-investigator/internal/server"
	"github.com/kafka-investigator/kafka-investigator/internal/session"
	"github.com/kafka-investigator/kafka-investigator/internal/signal"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

var flags consumeFlags

var consumeCmd = &cobra.Command{
	Use:   "consume [TOPIC]",
	Short: "Start an interactive consumer session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flags.topic = args[0]
		}
		return runConsume(flags)
	},
}

func init() {
	f := consumeCmd.Flags()
	f.StringVarP(&flags.profile, "profile", "p", "", "consumer profile from the config file")
	f.StringVarP(&flags.topic, "topic", "t", "", "topic to consume")
	f.StringVarP(&flags.groupID, "group", "g", "", "consumer group id (default \"kafka-investigator\")")
	f.StringVar(&flags.offsetReset, "offset-reset", "", "offset reset policy when the group has no committed offset: earliest or latest")
	f.StringVarP(&flags.connection, "connection", "c", "", "connection name from the config file (default connection if empty)")
	f.StringSliceVarP(&flags.brokers, "broker", "b", nil, "bootstrap brokers, overrides --connection")
	f.BoolVar(&flags.useSchemaRegistry, "use-schema-registry", false, "look up schemas of framed payloads")
	f.StringVar(&flags.schemaRegistry, "schema-registry", "", "schema registry name from the config file")
	f.StringVar(&flags.registryURL, "schema-registry-url", "", "schema registry url, overrides --schema-registry")
}

func runConsume(f consumeFlags) error {
	con := console.New(os.Stdin, os.Stdout)

	r, err := resolve(cfg, f)
	if err != nil {
		return err
	}

	// 1. 创建上下文，信号只取消会话
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go signal.WaitForShutdown(ctx, cancel, func(os.Signal) {
		con.Warn("Interrupted, finishing the session. Press Ctrl+C again to exit immediately.")
	})

	// 2. 创建Consumer，失败时终止
	kafkaConsumer, err := consumer.NewFranzConsumer(r.connection, r.request.GroupID, r.request.OffsetReset)
	if err != nil {
		logger.Error("failed to create kafka consumer", zap.Error(err))
		return err
	}

	// 3. Schema查询失败只禁用相关操作
	var lookup schema.Lookup
	if r.request.UseSchemaRegistry {
		if r.registryMissing {
			con.Warn("Schema registry [%s] not found, schema lookup is disabled.", r.request.SchemaRegistry)
		} else if fetcher, err := schema.NewFetcher(*r.registry); err != nil {
			logger.Warn("failed to create schema registry client", zap.Error(err))
			con.Warn("Schema registry unavailable (%v), schema lookup is disabled.", err)
		} else {
			defer fetcher.Close()
			lookup = fetcher
		}
	}

	printConsumerConfig(con, r, kafkaConsumer.ClientID(), lookup != nil)

	// 4. 启动HTTP服务器
	srv := server.NewServer(*cfg)
	srv.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Stop(shutdownCtx)
	}()
	srv.SetReady(true)

	// 5. 运行会话
	exporter := export.NewFileExporter(con, cfg.Export.Directory)
	s := session.New(r.request, kafkaConsumer, lookup, exporter, con, session.OptionsFromConfig(cfg.Session))
	err = s.Run(ctx)
	srv.SetReady(false)

	if stderrors.Is(err, context.Canceled) {
		logger.Info("session cancelled")
		return nil
	}
	return err
}

func printConsumerConfig(con *console.Console, r *resolved, clientID string, schemaLookup bool) {
	sasl := "none"
	if r.connection.SASL.Mechanism != "" {
		sasl = fmt.Sprintf("%s (%s)", r.connection.SASL.Mechanism, r.connection.SASL.Username)
	}
	registry := "disabled"
	if schemaLookup {
		registry = fmt.Sprintf("%s (%s)", r.registry.Name, r.registry.URL)
	}

	con.Title("Consumer configuration")
	con.Table([]string{"Setting", "Value"}, [][]string{
		{"Connection", r.connection.Name},
		{"Brokers", strings.Join(r.connection.Brokers, ",")},
		{"SASL", sasl},
		{"TLS", strconv.FormatBool(r.connection.TLS.Enabled)},
		{"Topic", r.request.Topic},
		{"Group id", r.request.GroupID},
		{"Client id", clientID},
		{"Offset reset", r.request.OffsetReset.String()},
		{"Auto commit", "false"},
		{"Schema registry", registry},
	})
}
