package offsets

import (
	"context"
	"fmt"
	"time"

	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

const (
	// DefaultMaxProbePartitions 探测分区的上限（不含）
	DefaultMaxProbePartitions = 100
	// DefaultWatermarkTimeout 单次水位查询超时
	DefaultWatermarkTimeout = 10 * time.Second

	DiscoveryMetadata = "metadata"
	DiscoveryProbe    = "probe"
)

// Options Controller参数
type Options struct {
	WatermarkTimeout   time.Duration
	MaxProbePartitions int
	Discovery          string // metadata, probe
	// 为空时使用topic范围的全局logger
	Logger *zap.Logger
}

// Controller 计算并应用分区offset分配
type Controller struct {
	consumer consumer.Consumer
	topic    string
	opts     Options
	log      *zap.Logger
}

// NewController 创建Controller
func NewController(c consumer.Consumer, topic string, opts Options) *Controller {
	if opts.WatermarkTimeout <= 0 {
		opts.WatermarkTimeout = DefaultWatermarkTimeout
	}
	if opts.MaxProbePartitions <= 0 {
		opts.MaxProbePartitions = DefaultMaxProbePartitions
	}
	if opts.Discovery == "" {
		opts.Discovery = DiscoveryMetadata
	}
	log := opts.Logger
	if log == nil {
		log = logger.ForTopic(topic)
	}
	return &Controller{consumer: c, topic: topic, opts: opts, log: log}
}

// DiscoverPartitions 返回topic所有分区的水位
//
// 优先使用topic元数据；不支持或失败时从0开始逐个探测，
// 在第一个查询失败的分区处停止，不会发现MaxProbePartitions及以后的分区。
func (c *Controller) DiscoverPartitions(ctx context.Context) ([]consumer.Watermark, error) {
	if lister, ok := c.consumer.(consumer.PartitionLister); ok && c.opts.Discovery == DiscoveryMetadata {
		watermarks, err := c.discoverFromMetadata(ctx, lister)
		if err == nil {
			return watermarks, nil
		}
		c.log.Warn("metadata partition discovery failed, falling back to probing",
			zap.Error(err),
		)
	}

	return c.probe(ctx)
}

func (c *Controller) discoverFromMetadata(ctx context.Context, lister consumer.PartitionLister) ([]consumer.Watermark, error) {
	partitions, err := lister.ListPartitions(ctx, c.topic, c.opts.WatermarkTimeout)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, nil
	}
	return lister.QueryWatermarks(ctx, c.topic, partitions, c.opts.WatermarkTimeout)
}

func (c *Controller) probe(ctx context.Context) ([]consumer.Watermark, error) {
	var watermarks []consumer.Watermark
	for p := 0; p < c.opts.MaxProbePartitions; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w, err := c.consumer.QueryWatermark(ctx, c.topic, int32(p), c.opts.WatermarkTimeout)
		if err != nil {
			// 查询失败视为分区不存在
			c.log.Debug("partition probe stopped",
				zap.Int("partition", p),
				zap.Error(err),
			)
			break
		}
		watermarks = append(watermarks, w)
	}

	if len(watermarks) == c.opts.MaxProbePartitions {
		c.log.Warn("partition probe reached its ceiling, later partitions are not discovered",
			zap.Int("max_probe_partitions", c.opts.MaxProbePartitions),
		)
	}
	return watermarks, nil
}

func (c *Controller) noPartitions() error {
	return errors.New(errors.ErrCodeNoPartitions,
		fmt.Sprintf("there's no partition to assign in topic [%s], check if the topic name is correct", c.topic))
}

// AssignAllPartitions 分配全部分区，不指定offset
func (c *Controller) AssignAllPartitions(ctx context.Context) (assigned []consumer.PartitionOffset, err error) {
	defer func() { c.record("assign_all", err) }()

	watermarks, err := c.DiscoverPartitions(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to assign all partitions", err)
	}
	if len(watermarks) == 0 {
		return nil, c.noPartitions()
	}

	assigned = make([]consumer.PartitionOffset, len(watermarks))
	for i, w := range watermarks {
		assigned[i] = consumer.PartitionOffset{Partition: w.Partition, Offset: consumer.OffsetUnset}
	}

	if err := c.consumer.Assign(ctx, c.topic, assigned); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to assign all partitions", err)
	}
	return assigned, nil
}

// ForceEarliest 将每个分区分配到低水位并存储为当前位置
func (c *Controller) ForceEarliest(ctx context.Context) (assigned []consumer.PartitionOffset, err error) {
	defer func() { c.record("force_earliest", err) }()

	watermarks, err := c.DiscoverPartitions(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to force consume earliest", err)
	}
	if len(watermarks) == 0 {
		return nil, c.noPartitions()
	}

	assigned = make([]consumer.PartitionOffset, len(watermarks))
	for i, w := range watermarks {
		assigned[i] = consumer.PartitionOffset{Partition: w.Partition, Offset: w.Low}
	}

	if err := c.assignAndStore(ctx, assigned); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to force consume earliest", err)
	}
	return assigned, nil
}

// ForceByTime 将每个分区分配到第一条时间戳不早于ts的offset并存储
func (c *Controller) ForceByTime(ctx context.Context, ts time.Time) (assigned []consumer.PartitionOffset, err error) {
	defer func() { c.record("force_by_time", err) }()

	watermarks, err := c.DiscoverPartitions(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to force consume by time", err)
	}
	if len(watermarks) == 0 {
		return nil, c.noPartitions()
	}

	query := make([]consumer.PartitionTimestamp, len(watermarks))
	for i, w := range watermarks {
		query[i] = consumer.PartitionTimestamp{Partition: w.Partition, Timestamp: ts}
	}

	assigned, err = c.consumer.OffsetsForTimes(ctx, c.topic, query, c.opts.WatermarkTimeout)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOffsetsForTimes, "error trying to force consume by time", err)
	}

	if err := c.assignAndStore(ctx, assigned); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAssign, "error trying to force consume by time", err)
	}
	return assigned, nil
}

func (c *Controller) assignAndStore(ctx context.Context, offsets []consumer.PartitionOffset) error {
	if err := c.consumer.Assign(ctx, c.topic, offsets); err != nil {
		return err
	}
	for _, po := range offsets {
		if err := c.consumer.StoreOffset(po); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) record(action string, err error) {
	metrics.OffsetActions.WithLabelValues(action, metrics.Status(err)).Inc()
	if err != nil {
		c.log.Error("offset action failed", zap.String("action", action), zap.Error(err))
		return
	}
	c.log.Info("offset action applied", zap.String("action", action))
}
