package consumer

import (
	"context"
	"time"
)

// OffsetUnset 未指定offset，按客户端默认策略恢复（已提交offset或reset策略）
const OffsetUnset int64 = -1001

// OffsetReset 无已提交offset时的起始策略
type OffsetReset int

const (
	OffsetResetEarliest OffsetReset = iota
	OffsetResetLatest
)

func (r OffsetReset) String() string {
	if r == OffsetResetLatest {
		return "latest"
	}
	return "earliest"
}

// ParseOffsetReset 解析earliest/latest，空字符串视为earliest
func ParseOffsetReset(s string) (OffsetReset, bool) {
	switch s {
	case "", "earliest", "Earliest", "EARLIEST":
		return OffsetResetEarliest, true
	case "latest", "Latest", "LATEST":
		return OffsetResetLatest, true
	default:
		return OffsetResetEarliest, false
	}
}

// Header 消息头，保持原始顺序
type Header struct {
	Key   string
	Value []byte
}

// Record Kafka消息
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// PartitionOffset 分区及其offset
type PartitionOffset struct {
	Partition int32
	Offset    int64
}

// PartitionTimestamp 按时间查询offset的请求项
type PartitionTimestamp struct {
	Partition int32
	Timestamp time.Time
}

// Watermark 分区的高低水位
type Watermark struct {
	Partition int32
	Low       int64
	High      int64
}

// Consumer 会话使用的消费者能力
type Consumer interface {
	Subscribe(ctx context.Context, topic string) error
	// Poll 在timeout内没有消息时返回nil, nil
	Poll(ctx context.Context, timeout time.Duration) (*Record, error)
	// CommitRecord 只提交该消息所在分区的offset
	CommitRecord(ctx context.Context, record *Record) error
	// CommitAll 提交所有分区当前存储的位置
	CommitAll(ctx context.Context) error
	Assignment() []PartitionOffset
	Position(partition int32) int64
	QueryWatermark(ctx context.Context, topic string, partition int32, timeout time.Duration) (Watermark, error)
	OffsetsForTimes(ctx context.Context, topic string, query []PartitionTimestamp, timeout time.Duration) ([]PartitionOffset, error)
	// Assign 手动指定分区，offset为OffsetUnset的分区按默认策略恢复
	Assign(ctx context.Context, topic string, offsets []PartitionOffset) error
	// StoreOffset 仅更新本地位置，不提交到broker
	StoreOffset(offset PartitionOffset) error
	Close() error
}

// PartitionLister 可以直接查询topic元数据的消费者
type PartitionLister interface {
	ListPartitions(ctx context.Context, topic string, timeout time.Duration) ([]int32, error)
	// QueryWatermarks 一次请求查询多个分区的水位
	QueryWatermarks(ctx context.Context, topic string, partitions []int32, timeout time.Duration) ([]Watermark, error)
}
