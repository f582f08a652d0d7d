// Package session 交互式消费会话：拉取、查看、调整offset、提交与导出
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/internal/console"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/internal/offsets"
	"github.com/kafka-investigator/kafka-investigator/internal/schema"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

// Request 会话参数，会话开始后不再变化
type Request struct {
	Topic             string
	GroupID           string
	OffsetReset       consumer.OffsetReset
	UseSchemaRegistry bool
	SchemaRegistry    string
}

// Validate 校验会话参数
func (r Request) Validate() error {
	if r.Topic == "" {
		return errors.New(errors.ErrCodeConfigValidate, "topic is required")
	}
	if r.GroupID == "" {
		return errors.New(errors.ErrCodeConfigValidate, "consumer group id is required")
	}
	return nil
}

// Options 会话调优参数
type Options struct {
	PollTimeout         time.Duration
	PreviewLength       int
	SchemaPreviewLength int
	CommitMaxAttempts   int
	CommitBackoff       time.Duration
	Offsets             offsets.Options
}

// OptionsFromConfig 由配置生成Options
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		PollTimeout:         time.Duration(cfg.PollTimeout) * time.Second,
		PreviewLength:       cfg.PreviewLength,
		SchemaPreviewLength: cfg.SchemaPreviewLength,
		CommitMaxAttempts:   cfg.CommitMaxAttempts,
		CommitBackoff:       time.Duration(cfg.CommitBackoff) * time.Second,
		Offsets: offsets.Options{
			WatermarkTimeout:   time.Duration(cfg.WatermarkTimeout) * time.Second,
			MaxProbePartitions: cfg.MaxProbePartitions,
			Discovery:          cfg.PartitionDiscovery,
		},
	}
}

// Exporter 导出当前消息
type Exporter interface {
	Export(ctx context.Context, record *consumer.Record) error
}

// rebalanceNotifier 支持再均衡通知的消费者
type rebalanceNotifier interface {
	OnRebalance(fn func(revoked []int32))
}

// Session 会话控制器，单线程运行
type Session struct {
	req      Request
	opts     Options
	consumer consumer.Consumer
	offsets  *offsets.Controller
	lookup   schema.Lookup
	exporter Exporter
	console  *console.Console
	log      *zap.Logger

	state   NavigationState
	current *consumer.Record
}

// New 创建会话；lookup为nil时禁用schema相关操作
func New(req Request, c consumer.Consumer, lookup schema.Lookup, exporter Exporter, con *console.Console, opts Options) *Session {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Second
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = 170
	}
	if opts.SchemaPreviewLength <= 0 {
		opts.SchemaPreviewLength = 150
	}
	if opts.CommitMaxAttempts <= 0 {
		opts.CommitMaxAttempts = 3
	}
	if opts.CommitBackoff <= 0 {
		opts.CommitBackoff = time.Second
	}

	log := logger.ForSession(req.Topic, req.GroupID)
	opts.Offsets.Logger = log

	return &Session{
		req:      req,
		opts:     opts,
		consumer: c,
		offsets:  offsets.NewController(c, req.Topic, opts.Offsets),
		lookup:   lookup,
		exporter: exporter,
		console:  con,
		log:      log,
		state:    NavigationState{Menu: ConsumerMenu, BeforeFirstPoll: true},
	}
}

// State 当前导航状态
func (s *Session) State() NavigationState {
	return s.state
}

// Run 运行会话直到退出、致命错误或ctx取消，返回前总会关闭消费者
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		if err := s.consumer.Close(); err != nil {
			s.log.Warn("failed to close consumer", zap.Error(err))
		}
		s.log.Info("session finished")
	}()

	s.log.Info("session started",
		zap.String("offset_reset", s.req.OffsetReset.String()),
		zap.Bool("schema_lookup", s.lookup != nil),
	)

	if err := s.consumer.Subscribe(ctx, s.req.Topic); err != nil {
		s.console.Error("Error subscribing to topic [%s]: %v", s.req.Topic, err)
		return err
	}
	if n, ok := s.consumer.(rebalanceNotifier); ok {
		n.OnRebalance(s.rebalanced)
	}
	s.console.Info("Subscribed to topic [%s] with group [%s].", s.req.Topic, s.req.GroupID)

	signal := SignalConsumerMenu
	for {
		switch signal {
		case SignalStopConsume:
			s.console.Info("Session finished.")
			return ctx.Err()
		case SignalContinueConsume:
			// 仅在拉取前检查取消
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			if signal, err = s.next(ctx); err != nil {
				return err
			}
		case SignalConsumerMenu:
			s.state.Menu = ConsumerMenu
			signal = s.consumerMenu(ctx)
		case SignalMessageMenu:
			s.state.Menu = MessageMenu
			signal = s.messageMenu(ctx)
		default:
			return fmt.Errorf("unknown navigation signal %d", signal)
		}
	}
}

// next 拉取一条消息，有消息时进入消息菜单
func (s *Session) next(ctx context.Context) (Signal, error) {
	s.console.Info("Consuming topic [%s], waiting up to %s...", s.req.Topic, s.opts.PollTimeout)

	start := time.Now()
	record, err := s.consumer.Poll(ctx, s.opts.PollTimeout)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	s.state.BeforeFirstPoll = false

	switch {
	case err != nil && errors.IsFatal(err):
		metrics.PollsTotal.WithLabelValues(s.req.Topic, "error").Inc()
		s.log.Error("fatal poll error", zap.Error(err))
		s.console.Error("Fatal error consuming topic [%s]: %v", s.req.Topic, err)
		return SignalStopConsume, err
	case err != nil:
		metrics.PollsTotal.WithLabelValues(s.req.Topic, "error").Inc()
		s.log.Warn("poll error", zap.Error(err))
		s.console.Error("Error consuming message: %v", err)
		return SignalConsumerMenu, nil
	case record == nil:
		metrics.PollsTotal.WithLabelValues(s.req.Topic, "empty").Inc()
		s.console.Warn("No message returned by the broker within %s.", s.opts.PollTimeout)
		return SignalConsumerMenu, nil
	}

	metrics.PollsTotal.WithLabelValues(s.req.Topic, "record").Inc()
	metrics.RecordBytes.WithLabelValues(s.req.Topic).Add(float64(len(record.Key) + len(record.Value)))
	s.log.Debug("record polled",
		zap.Int32("partition", record.Partition),
		zap.Int64("offset", record.Offset),
	)

	s.current = record
	s.state.HasRecord = true
	s.printRecord(ctx)
	return SignalMessageMenu, nil
}

func (s *Session) rebalanced(revoked []int32) {
	if len(revoked) == 0 {
		return
	}
	s.console.Warn("Group rebalancing occurred, partitions %v were revoked. Stored positions for them are lost.", revoked)
}

// perform 执行菜单操作，错误和panic都不会结束会话；输入关闭时返回true
func (s *Session) perform(ctx context.Context, menu Menu, name string, fn func(context.Context) error) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("menu action panicked",
				zap.String("menu", menu.String()),
				zap.String("action", name),
				zap.Any("panic", r),
			)
			s.console.Error("Unexpected error running [%s]: %v", name, r)
		}
	}()

	s.log.Debug("menu action", zap.String("menu", menu.String()), zap.String("action", name))
	metrics.MenuActions.WithLabelValues(menu.String(), name).Inc()

	err := fn(ctx)
	if err == nil {
		return false
	}
	if inputClosed(err) {
		return true
	}
	s.log.Error("menu action failed",
		zap.String("menu", menu.String()),
		zap.String("action", name),
		zap.Error(err),
	)
	s.console.Error("Error running [%s]: %v", name, err)
	return false
}

// inputClosed 输入结束或会话被取消
func inputClosed(err error) bool {
	return stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

func (s *Session) readKey(ctx context.Context) (rune, string, bool) {
	key, input, err := s.console.ReadKey(ctx, "Option: ")
	if err != nil {
		if !inputClosed(err) {
			s.log.Error("failed to read input", zap.Error(err))
		}
		return console.NoKey, "", false
	}
	return key, input, true
}

func (s *Session) invalidKey(input string) {
	s.console.Warn("invalid option [%s], choose one of the options below.", input)
}
