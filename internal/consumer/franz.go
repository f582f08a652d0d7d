package consumer

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

// FranzConsumer franz-go消费者实现
//
// Subscribe之后以消费组方式消费；Assign之后切换为手动分区模式，
// 此时提交通过kadm以simple consumer方式写入消费组offset。
type FranzConsumer struct {
	cfg      config.ConnectionConfig
	groupID  string
	reset    OffsetReset
	clientID string

	admin *kgo.Client
	adm   *kadm.Client

	// franz-go回调在内部goroutine中执行，以下字段需加锁
	mu       sync.Mutex
	client   *kgo.Client
	topic    string
	manual   bool
	assigned map[int32]bool
	stored   map[int32]int64
	epochs   map[int32]int32
	closed   bool

	onRebalance func(revoked []int32)
}

// NewFranzConsumer 创建franz-go消费者
func NewFranzConsumer(cfg config.ConnectionConfig, groupID string, reset OffsetReset) (*FranzConsumer, error) {
	clientID, err := os.Hostname()
	if err != nil || clientID == "" {
		clientID = "kafka-investigator"
	}

	c := &FranzConsumer{
		cfg:      cfg,
		groupID:  groupID,
		reset:    reset,
		clientID: clientID,
		assigned: make(map[int32]bool),
		stored:   make(map[int32]int64),
		epochs:   make(map[int32]int32),
	}

	opts, err := c.baseOpts()
	if err != nil {
		return nil, err
	}

	// 元数据、水位和手动提交使用独立的admin客户端
	admin, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaConnect, "failed to create kafka admin client", err)
	}
	c.admin = admin
	c.adm = kadm.NewClient(admin)

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group_id", groupID),
		zap.String("offset_reset", reset.String()),
		zap.String("client_id", clientID),
	)

	return c, nil
}

// ClientID 返回客户端ID
func (c *FranzConsumer) ClientID() string {
	return c.clientID
}

// OnRebalance 设置消费组再均衡（分区被回收）时的回调
func (c *FranzConsumer) OnRebalance(fn func(revoked []int32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRebalance = fn
}

// baseOpts 连接相关的公共选项
func (c *FranzConsumer) baseOpts() ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.cfg.Brokers...),
		kgo.ClientID(c.clientID),
	}

	if c.cfg.TLS.Enabled {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{
			InsecureSkipVerify: c.cfg.TLS.InsecureSkipVerify,
		}))
	}

	sasl := c.cfg.SASL
	switch strings.ToUpper(sasl.Mechanism) {
	case "":
	case "PLAIN":
		opts = append(opts, kgo.SASL(plain.Auth{User: sasl.Username, Pass: sasl.Password}.AsMechanism()))
	case "SCRAM-SHA-256":
		opts = append(opts, kgo.SASL(scram.Auth{User: sasl.Username, Pass: sasl.Password}.AsSha256Mechanism()))
	case "SCRAM-SHA-512":
		opts = append(opts, kgo.SASL(scram.Auth{User: sasl.Username, Pass: sasl.Password}.AsSha512Mechanism()))
	default:
		return nil, errors.New(errors.ErrCodeKafkaConnect, fmt.Sprintf("unsupported sasl mechanism %q", sasl.Mechanism))
	}

	return opts, nil
}

func (c *FranzConsumer) resetOffset() kgo.Offset {
	if c.reset == OffsetResetLatest {
		return kgo.NewOffset().AtEnd()
	}
	return kgo.NewOffset().AtStart()
}

// Subscribe 以消费组方式订阅topic
func (c *FranzConsumer) Subscribe(ctx context.Context, topic string) error {
	opts, err := c.baseOpts()
	if err != nil {
		return err
	}
	opts = append(opts,
		kgo.ConsumerGroup(c.groupID),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(), // 只在用户确认后提交
		kgo.ConsumeResetOffset(c.resetOffset()),
		kgo.OnPartitionsAssigned(c.partitionsAssigned),
		kgo.OnPartitionsRevoked(c.partitionsRevoked),
		kgo.OnPartitionsLost(c.partitionsRevoked),
	)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeKafkaConnect, "failed to create kafka client", err)
	}

	// 测试连接
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return errors.Wrap(errors.ErrCodeKafkaConnect, "failed to ping kafka", err)
	}

	c.mu.Lock()
	old := c.client
	c.client = client
	c.topic = topic
	c.manual = false
	c.assigned = make(map[int32]bool)
	c.stored = make(map[int32]int64)
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	logger.Info("kafka consumer subscribed", zap.String("topic", topic), zap.String("group_id", c.groupID))
	return nil
}

func (c *FranzConsumer) partitionsAssigned(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range assigned[c.topic] {
		c.assigned[p] = true
	}
	logger.Info("partitions assigned", zap.Int32s("partitions", assigned[c.topic]))
}

func (c *FranzConsumer) partitionsRevoked(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
	c.mu.Lock()
	for _, p := range revoked[c.topic] {
		delete(c.assigned, p)
		delete(c.stored, p)
	}
	fn := c.onRebalance
	c.mu.Unlock()

	logger.Warn("group rebalancing occurred", zap.Int32s("revoked", revoked[c.topic]))
	if fn != nil {
		fn(revoked[c.topic])
	}
}

func (c *FranzConsumer) current() (*kgo.Client, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client, c.topic, c.manual
}

// Poll 拉取一条消息
func (c *FranzConsumer) Poll(ctx context.Context, timeout time.Duration) (*Record, error) {
	client, _, _ := c.current()
	if client == nil {
		return nil, errors.New(errors.ErrCodePollFatal, "consumer is not subscribed")
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := client.PollRecords(pollCtx, 1)
	if fetches.IsClientClosed() {
		return nil, errors.New(errors.ErrCodePollFatal, "kafka client closed")
	}

	var fetchErr error
	for _, fe := range fetches.Errors() {
		// 超时或取消等同于没有消息
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		logger.Error("fetch error",
			zap.String("topic", fe.Topic),
			zap.Int32("partition", fe.Partition),
			zap.Error(fe.Err),
		)
		if fetchErr == nil {
			fetchErr = errors.Wrap(errors.ErrCodePoll,
				fmt.Sprintf("fetch error on %s[%d]", fe.Topic, fe.Partition), fe.Err)
		}
	}

	records := fetches.Records()
	if len(records) == 0 {
		return nil, fetchErr
	}

	r := records[0]
	c.mu.Lock()
	c.stored[r.Partition] = r.Offset + 1
	c.epochs[r.Partition] = r.LeaderEpoch
	c.assigned[r.Partition] = true
	c.mu.Unlock()

	return fromKgo(r), nil
}

func fromKgo(r *kgo.Record) *Record {
	headers := make([]Header, len(r.Headers))
	for i, h := range r.Headers {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return &Record{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// CommitRecord 提交单条消息（offset+1），不影响其他分区
func (c *FranzConsumer) CommitRecord(ctx context.Context, record *Record) error {
	client, topic, manual := c.current()
	if client == nil {
		return errors.New(errors.ErrCodeCommit, "consumer is not subscribed")
	}

	if !manual {
		c.mu.Lock()
		epoch, ok := c.epochs[record.Partition]
		c.mu.Unlock()
		if !ok {
			epoch = -1
		}
		kr := &kgo.Record{
			Topic:       topic,
			Partition:   record.Partition,
			Offset:      record.Offset,
			LeaderEpoch: epoch,
		}
		if err := client.CommitRecords(ctx, kr); err != nil {
			return errors.Wrap(errors.ErrCodeCommit, "failed to commit record", err)
		}
		return nil
	}

	offsets := make(kadm.Offsets)
	offsets.Add(kadm.Offset{Topic: topic, Partition: record.Partition, At: record.Offset + 1, LeaderEpoch: -1})
	return c.commitOffsets(ctx, offsets)
}

// CommitAll 提交所有分区当前存储的位置
//
// 手动分区模式下没有任何存储位置时返回ErrCodeNothingToCommit
func (c *FranzConsumer) CommitAll(ctx context.Context) error {
	client, topic, manual := c.current()
	if client == nil {
		return errors.New(errors.ErrCodeCommit, "consumer is not subscribed")
	}

	if !manual {
		if err := client.CommitUncommittedOffsets(ctx); err != nil {
			return errors.Wrap(errors.ErrCodeCommit, "failed to commit offsets", err)
		}
		return nil
	}

	offsets := make(kadm.Offsets)
	c.mu.Lock()
	for p, off := range c.stored {
		offsets.Add(kadm.Offset{Topic: topic, Partition: p, At: off, LeaderEpoch: -1})
	}
	c.mu.Unlock()

	if len(offsets) == 0 {
		return errors.New(errors.ErrCodeNothingToCommit, fmt.Sprintf("no stored positions to commit for topic %s", topic))
	}
	return c.commitOffsets(ctx, offsets)
}

func (c *FranzConsumer) commitOffsets(ctx context.Context, offsets kadm.Offsets) error {
	resps, err := c.adm.CommitOffsets(ctx, c.groupID, offsets)
	if err == nil {
		err = resps.Error()
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeCommit, "failed to commit offsets", err)
	}
	return nil
}

// Assignment 当前分配的分区及其位置
func (c *FranzConsumer) Assignment() []PartitionOffset {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]PartitionOffset, 0, len(c.assigned))
	for p := range c.assigned {
		result = append(result, PartitionOffset{Partition: p, Offset: c.positionLocked(p)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Partition < result[j].Partition })
	return result
}

// Position 分区下一条待消费的offset
func (c *FranzConsumer) Position(partition int32) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked(partition)
}

func (c *FranzConsumer) positionLocked(partition int32) int64 {
	if off, ok := c.stored[partition]; ok {
		return off
	}
	return OffsetUnset
}

// QueryWatermark 查询分区高低水位，分区不存在时返回错误
func (c *FranzConsumer) QueryWatermark(ctx context.Context, topic string, partition int32, timeout time.Duration) (Watermark, error) {
	watermarks, err := c.QueryWatermarks(ctx, topic, []int32{partition}, timeout)
	if err != nil {
		return Watermark{}, err
	}
	return watermarks[0], nil
}

// QueryWatermarks 列出topic起止offset各一次，再按分区取值
func (c *FranzConsumer) QueryWatermarks(ctx context.Context, topic string, partitions []int32, timeout time.Duration) ([]Watermark, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	starts, err := c.adm.ListStartOffsets(ctx, topic)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWatermark, "failed to list start offsets", err)
	}
	ends, err := c.adm.ListEndOffsets(ctx, topic)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWatermark, "failed to list end offsets", err)
	}

	watermarks := make([]Watermark, 0, len(partitions))
	for _, p := range partitions {
		w, err := watermarkOf(starts, ends, topic, p)
		if err != nil {
			return nil, err
		}
		watermarks = append(watermarks, w)
	}
	return watermarks, nil
}

func watermarkOf(starts, ends kadm.ListedOffsets, topic string, partition int32) (Watermark, error) {
	low, ok := starts.Lookup(topic, partition)
	if !ok {
		return Watermark{}, errors.New(errors.ErrCodeWatermark, fmt.Sprintf("partition %s[%d] not found", topic, partition))
	}
	high, ok := ends.Lookup(topic, partition)
	if !ok {
		return Watermark{}, errors.New(errors.ErrCodeWatermark, fmt.Sprintf("partition %s[%d] not found", topic, partition))
	}
	if low.Err != nil {
		return Watermark{}, errors.Wrap(errors.ErrCodeWatermark, "failed to query low watermark", low.Err)
	}
	if high.Err != nil {
		return Watermark{}, errors.Wrap(errors.ErrCodeWatermark, "failed to query high watermark", high.Err)
	}
	return Watermark{Partition: partition, Low: low.Offset, High: high.Offset}, nil
}

// ListPartitions 通过topic元数据获取分区列表
func (c *FranzConsumer) ListPartitions(ctx context.Context, topic string, timeout time.Duration) ([]int32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	details, err := c.adm.ListTopics(ctx, topic)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWatermark, "failed to list topic metadata", err)
	}
	detail, ok := details[topic]
	if !ok {
		return nil, errors.New(errors.ErrCodeNoPartitions, fmt.Sprintf("topic %s not found", topic))
	}
	if detail.Err != nil {
		return nil, errors.Wrap(errors.ErrCodeWatermark, "topic metadata error", detail.Err)
	}

	partitions := make([]int32, 0, len(detail.Partitions))
	for p := range detail.Partitions {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	return partitions, nil
}

// OffsetsForTimes 返回每个分区第一条时间戳不早于给定时间的offset，
// 没有这样的消息时返回高水位
func (c *FranzConsumer) OffsetsForTimes(ctx context.Context, topic string, query []PartitionTimestamp, timeout time.Duration) ([]PartitionOffset, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	byMilli := make(map[int64]kadm.ListedOffsets)
	var ends kadm.ListedOffsets

	result := make([]PartitionOffset, 0, len(query))
	for _, q := range query {
		milli := q.Timestamp.UnixMilli()
		listed, ok := byMilli[milli]
		if !ok {
			var err error
			listed, err = c.adm.ListOffsetsAfterMilli(ctx, milli, topic)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeOffsetsForTimes, "failed to list offsets by time", err)
			}
			byMilli[milli] = listed
		}

		o, ok := listed.Lookup(topic, q.Partition)
		if !ok {
			return nil, errors.New(errors.ErrCodeOffsetsForTimes, fmt.Sprintf("partition %s[%d] not found", topic, q.Partition))
		}
		if o.Err != nil {
			return nil, errors.Wrap(errors.ErrCodeOffsetsForTimes, "failed to list offsets by time", o.Err)
		}

		offset := o.Offset
		if offset < 0 {
			if ends == nil {
				var err error
				ends, err = c.adm.ListEndOffsets(ctx, topic)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeOffsetsForTimes, "failed to list end offsets", err)
				}
			}
			if end, ok := ends.Lookup(topic, q.Partition); ok && end.Err == nil {
				offset = end.Offset
			}
		}

		result = append(result, PartitionOffset{Partition: q.Partition, Offset: offset})
	}

	return result, nil
}

// Assign 手动指定分区，重建为非消费组的客户端
func (c *FranzConsumer) Assign(ctx context.Context, topic string, offsets []PartitionOffset) error {
	if len(offsets) == 0 {
		return errors.New(errors.ErrCodeAssign, "no partitions to assign")
	}

	// 未指定offset的分区从已提交offset恢复
	var committed kadm.OffsetResponses
	for _, po := range offsets {
		if po.Offset == OffsetUnset {
			resps, err := c.adm.FetchOffsets(ctx, c.groupID)
			if err != nil {
				return errors.Wrap(errors.ErrCodeAssign, "failed to fetch committed offsets", err)
			}
			committed = resps
			break
		}
	}

	partitions := make(map[int32]kgo.Offset, len(offsets))
	stored := make(map[int32]int64, len(offsets))
	assigned := make(map[int32]bool, len(offsets))
	for _, po := range offsets {
		assigned[po.Partition] = true
		if po.Offset != OffsetUnset {
			partitions[po.Partition] = kgo.NewOffset().At(po.Offset)
			stored[po.Partition] = po.Offset
			continue
		}
		if resp, ok := committed.Lookup(topic, po.Partition); ok && resp.Err == nil && resp.At >= 0 {
			partitions[po.Partition] = kgo.NewOffset().At(resp.At)
			stored[po.Partition] = resp.At
			continue
		}
		partitions[po.Partition] = c.resetOffset()
	}

	opts, err := c.baseOpts()
	if err != nil {
		return err
	}
	opts = append(opts,
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{topic: partitions}),
	)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAssign, "failed to create kafka client", err)
	}

	c.mu.Lock()
	old := c.client
	c.client = client
	c.topic = topic
	c.manual = true
	c.assigned = assigned
	c.stored = stored
	c.epochs = make(map[int32]int32)
	c.mu.Unlock()

	// 关闭旧客户端会离开消费组
	if old != nil {
		old.Close()
	}

	logger.Info("partitions assigned manually",
		zap.String("topic", topic),
		zap.Int("partitions", len(offsets)),
	)
	return nil
}

// StoreOffset 更新本地位置，CommitAll时提交
func (c *FranzConsumer) StoreOffset(offset PartitionOffset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.assigned[offset.Partition] {
		return errors.New(errors.ErrCodeAssign, fmt.Sprintf("partition %d is not assigned", offset.Partition))
	}
	c.stored[offset.Partition] = offset.Offset
	return nil
}

// Close 关闭消费者
func (c *FranzConsumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client != nil {
		client.Close()
	}
	c.adm.Close()

	logger.Info("kafka consumer closed")
	return nil
}

var (
	_ Consumer        = (*FranzConsumer)(nil)
	_ PartitionLister = (*FranzConsumer)(nil)
)
