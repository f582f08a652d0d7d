package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/utils"
	"go.uber.org/zap"
)

// timeLayouts Force-By-Time可接受的时间格式，无时区时按本地时间解析
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// consumerMenu 显示消费者菜单直到用户选择导航类操作
func (s *Session) consumerMenu(ctx context.Context) Signal {
	for {
		s.console.Menu(fmt.Sprintf("Consumer menu [%s]", s.req.Topic), consumerOptions(s.state))

		key, input, ok := s.readKey(ctx)
		if !ok {
			return SignalStopConsume
		}
		action, ok := parseConsumerAction(key, s.state)
		if !ok {
			s.invalidKey(input)
			continue
		}

		var stop bool
		switch action {
		case ConsumerNext:
			return SignalContinueConsume
		case ConsumerBackToMessage:
			return SignalMessageMenu
		case ConsumerQuit:
			return SignalStopConsume
		case ConsumerPrintAssignment:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.printAssignment)
		case ConsumerPrintPartitions:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.printPartitions)
		case ConsumerCommitAssignment:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.commitAssignment)
		case ConsumerForceAllPartitions:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.forceAllPartitions)
		case ConsumerForceEarliest:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.forceEarliest)
		case ConsumerForceByTime:
			stop = s.perform(ctx, ConsumerMenu, action.String(), s.forceByTime)
		}
		if stop {
			return SignalStopConsume
		}
	}
}

func (s *Session) printAssignment(_ context.Context) error {
	s.console.Title("Assignment")
	assignment := s.consumer.Assignment()
	if len(assignment) == 0 {
		s.console.Println("[none] Waiting for broker (server) assignment...")
		return nil
	}

	rows := make([][]string, len(assignment))
	for i, po := range assignment {
		rows[i] = []string{utils.ToString(po.Partition), formatOffset(po.Offset)}
	}
	s.console.Table([]string{"Partition", "Position"}, rows)
	return nil
}

func (s *Session) printPartitions(ctx context.Context) error {
	watermarks, err := s.offsets.DiscoverPartitions(ctx)
	if err != nil {
		return err
	}
	if len(watermarks) == 0 {
		s.console.Warn("There's no partition in topic [%s]. Check if the topic name is correct.", s.req.Topic)
		return nil
	}

	s.console.Title(fmt.Sprintf("Partitions of [%s]", s.req.Topic))
	rows := make([][]string, len(watermarks))
	for i, w := range watermarks {
		rows[i] = []string{
			utils.ToString(w.Partition),
			utils.ToString(w.Low),
			utils.ToString(w.High),
			utils.ToString(w.High-w.Low),
		}
	}
	s.console.Table([]string{"Partition", "Low", "High", "Messages"}, rows)
	return nil
}

// commitAssignment 提交所有分区的已存储位置，协调错误时按线性退避重试
func (s *Session) commitAssignment(ctx context.Context) error {
	ok, err := s.console.Confirm(ctx, "This will commit the stored positions of ALL assigned partitions. Continue?")
	if err != nil {
		return err
	}
	if !ok {
		s.console.Info("Commit cancelled.")
		return nil
	}

	attempts := s.opts.CommitMaxAttempts
	err = utils.WithRetry(ctx, attempts, utils.LinearBackoff(s.opts.CommitBackoff), errors.IsTransientCoordination,
		func(attempt int) error {
			if attempt > 1 {
				metrics.CommitRetries.Inc()
				s.console.Warn("Retrying commit (attempt %d of %d)...", attempt, attempts)
			}
			return s.consumer.CommitAll(ctx)
		})
	if errors.IsCode(err, errors.ErrCodeNothingToCommit) {
		metrics.CommitsTotal.WithLabelValues("assignment", "empty").Inc()
		s.console.Info("Nothing to commit, no partition has a stored position yet.")
		return nil
	}
	metrics.CommitsTotal.WithLabelValues("assignment", metrics.Status(err)).Inc()

	if err != nil {
		if inputClosed(err) {
			return err
		}
		if errors.IsTransientCoordination(err) {
			err = errors.Wrap(errors.ErrCodeCommitRetryExhausted,
				fmt.Sprintf("commit still failing after %d attempts", attempts), err)
		} else {
			err = errors.Wrap(errors.ErrCodeCommit, "commit failed", err)
		}
		s.log.Error("assignment commit failed", zap.Error(err))
		s.console.Error("Error committing assignment: %v", err)
		s.console.Warn("If this keeps failing, restart the whole session to rejoin the consumer group.")
		return nil
	}

	s.log.Info("assignment committed")
	s.console.Success("Assignment committed.")
	return nil
}

func (s *Session) forceAllPartitions(ctx context.Context) error {
	assigned, err := s.offsets.AssignAllPartitions(ctx)
	if err != nil {
		return s.offsetError(err)
	}
	s.console.Success("Assigned %d partition(s) of [%s], positions resume from committed offsets or [%s].",
		len(assigned), s.req.Topic, s.req.OffsetReset)
	return nil
}

func (s *Session) forceEarliest(ctx context.Context) error {
	assigned, err := s.offsets.ForceEarliest(ctx)
	if err != nil {
		return s.offsetError(err)
	}
	s.console.Success("Assigned %d partition(s) of [%s] to their earliest offsets.", len(assigned), s.req.Topic)
	s.printOffsets(assigned)
	return nil
}

func (s *Session) forceByTime(ctx context.Context) error {
	input, err := s.console.Ask(ctx, "Timestamp (yyyy-MM-dd HH:mm:ss, RFC3339 or unix millis)", "")
	if err != nil {
		return err
	}
	ts, err := parseTimestamp(input)
	if err != nil {
		s.console.Warn("Invalid timestamp [%s].", input)
		return nil
	}

	assigned, err := s.offsets.ForceByTime(ctx, ts)
	if err != nil {
		return s.offsetError(err)
	}
	s.console.Success("Assigned %d partition(s) of [%s] to the first offsets at or after %s.",
		len(assigned), s.req.Topic, ts.Format(time.RFC3339))
	s.printOffsets(assigned)
	return nil
}

// offsetError 没有分区时给出提示而不是报错
func (s *Session) offsetError(err error) error {
	if errors.IsCode(err, errors.ErrCodeNoPartitions) {
		s.console.Warn("There's no partition to assign in topic [%s]. Check if the topic name is correct.", s.req.Topic)
		return nil
	}
	return err
}

func (s *Session) printOffsets(assigned []consumer.PartitionOffset) {
	rows := make([][]string, len(assigned))
	for i, po := range assigned {
		rows[i] = []string{utils.ToString(po.Partition), formatOffset(po.Offset)}
	}
	s.console.Table([]string{"Partition", "Offset"}, rows)
}

func formatOffset(offset int64) string {
	if offset == consumer.OffsetUnset {
		return "unset"
	}
	return utils.ToString(offset)
}

func parseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if ms, err := strconv.ParseInt(input, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, input, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", input)
}
