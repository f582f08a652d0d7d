// Package consumertest 提供内存版的consumer.Consumer，用于测试
package consumertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
)

// ErrNoPartition 查询不存在的分区
var ErrNoPartition = errors.New("unknown partition")

// StoredRecord 分区中的一条消息，用于按时间查询offset
type StoredRecord struct {
	Offset    int64
	Timestamp time.Time
}

// Fake 内存消费者
type Fake struct {
	mu sync.Mutex

	// 可查询水位的分区
	Watermarks map[int32]consumer.Watermark
	// 分区内消息的时间戳，按offset递增
	PartitionRecords map[int32][]StoredRecord

	// 每次Poll依次返回的结果，nil表示超时无消息
	Polls    []*consumer.Record
	PollErrs map[int]error

	CommitAllErrs   []error
	CommitRecordErr error
	AssignErr       error
	SubscribeErr    error

	// 记录调用
	Subscribed       string
	PollCount        int
	CommitAllCount   int
	CommittedRecords []*consumer.Record
	Assigned         []consumer.PartitionOffset
	AssignCount      int
	Stored           map[int32]int64
	WatermarkQueries []int32
	Closed           bool
}

// NewFake 创建带有给定水位的Fake
func NewFake(watermarks ...consumer.Watermark) *Fake {
	f := &Fake{
		Watermarks:       make(map[int32]consumer.Watermark),
		PartitionRecords: make(map[int32][]StoredRecord),
		PollErrs:         make(map[int]error),
		Stored:           make(map[int32]int64),
	}
	for _, w := range watermarks {
		f.Watermarks[w.Partition] = w
	}
	return f
}

func (f *Fake) Subscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscribed = topic
	return f.SubscribeErr
}

func (f *Fake) Poll(ctx context.Context, _ time.Duration) (*consumer.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.PollCount
	f.PollCount++
	if err, ok := f.PollErrs[n]; ok {
		return nil, err
	}
	if n >= len(f.Polls) {
		return nil, nil
	}
	r := f.Polls[n]
	if r != nil {
		f.Stored[r.Partition] = r.Offset + 1
	}
	return r, nil
}

func (f *Fake) CommitRecord(_ context.Context, record *consumer.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitRecordErr != nil {
		return f.CommitRecordErr
	}
	f.CommittedRecords = append(f.CommittedRecords, record)
	return nil
}

func (f *Fake) CommitAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.CommitAllCount
	f.CommitAllCount++
	if n < len(f.CommitAllErrs) {
		return f.CommitAllErrs[n]
	}
	return nil
}

func (f *Fake) Assignment() []consumer.PartitionOffset {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]consumer.PartitionOffset, 0, len(f.Assigned))
	for _, po := range f.Assigned {
		result = append(result, consumer.PartitionOffset{Partition: po.Partition, Offset: f.positionLocked(po.Partition)})
	}
	return result
}

func (f *Fake) Position(partition int32) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionLocked(partition)
}

func (f *Fake) positionLocked(partition int32) int64 {
	if off, ok := f.Stored[partition]; ok {
		return off
	}
	return consumer.OffsetUnset
}

func (f *Fake) QueryWatermark(_ context.Context, _ string, partition int32, _ time.Duration) (consumer.Watermark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WatermarkQueries = append(f.WatermarkQueries, partition)
	w, ok := f.Watermarks[partition]
	if !ok {
		return consumer.Watermark{}, fmt.Errorf("partition %d: %w", partition, ErrNoPartition)
	}
	return w, nil
}

// OffsetsForTimes 返回第一条时间戳不早于查询时间的offset，没有则返回高水位
func (f *Fake) OffsetsForTimes(_ context.Context, _ string, query []consumer.PartitionTimestamp, _ time.Duration) ([]consumer.PartitionOffset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]consumer.PartitionOffset, 0, len(query))
	for _, q := range query {
		w, ok := f.Watermarks[q.Partition]
		if !ok {
			return nil, fmt.Errorf("partition %d: %w", q.Partition, ErrNoPartition)
		}
		offset := w.High
		for _, r := range f.PartitionRecords[q.Partition] {
			if !r.Timestamp.Before(q.Timestamp) {
				offset = r.Offset
				break
			}
		}
		result = append(result, consumer.PartitionOffset{Partition: q.Partition, Offset: offset})
	}
	return result, nil
}

func (f *Fake) Assign(_ context.Context, _ string, offsets []consumer.PartitionOffset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AssignErr != nil {
		return f.AssignErr
	}
	f.AssignCount++
	f.Assigned = append([]consumer.PartitionOffset(nil), offsets...)
	f.Stored = make(map[int32]int64)
	return nil
}

func (f *Fake) StoreOffset(offset consumer.PartitionOffset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, po := range f.Assigned {
		if po.Partition == offset.Partition {
			f.Stored[offset.Partition] = offset.Offset
			return nil
		}
	}
	return fmt.Errorf("partition %d is not assigned", offset.Partition)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// StoredOffsets 返回按分区排序的本地位置快照
func (f *Fake) StoredOffsets() []consumer.PartitionOffset {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]consumer.PartitionOffset, 0, len(f.Stored))
	for p, off := range f.Stored {
		result = append(result, consumer.PartitionOffset{Partition: p, Offset: off})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Partition < result[j].Partition })
	return result
}

// Lister 额外实现consumer.PartitionLister的Fake
type Lister struct {
	*Fake
	Partitions []int32
	ListErr    error
	ListCount  int
	BatchCount int
}

func (l *Lister) ListPartitions(_ context.Context, _ string, _ time.Duration) ([]int32, error) {
	l.ListCount++
	if l.ListErr != nil {
		return nil, l.ListErr
	}
	return l.Partitions, nil
}

func (l *Lister) QueryWatermarks(_ context.Context, _ string, partitions []int32, _ time.Duration) ([]consumer.Watermark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.BatchCount++

	result := make([]consumer.Watermark, 0, len(partitions))
	for _, p := range partitions {
		w, ok := l.Watermarks[p]
		if !ok {
			return nil, fmt.Errorf("partition %d: %w", p, ErrNoPartition)
		}
		result = append(result, w)
	}
	return result, nil
}

var (
	_ consumer.Consumer        = (*Fake)(nil)
	_ consumer.PartitionLister = (*Lister)(nil)
)
