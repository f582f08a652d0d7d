package offsets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer/consumertest"
	ierrors "github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
)

func init() {
	logger.Set(zap.NewNop())
}

func watermarks(n int) []consumer.Watermark {
	ws := make([]consumer.Watermark, n)
	for i := range ws {
		ws[i] = consumer.Watermark{Partition: int32(i), Low: int64(i), High: int64(i * 10)}
	}
	return ws
}

func TestDiscoverPartitions_Probe(t *testing.T) {
	for _, n := range []int{0, 1, 3, 12} {
		fake := consumertest.NewFake(watermarks(n)...)
		// 分区n+1存在但n不可查询，探测应在n处停止
		fake.Watermarks[int32(n+1)] = consumer.Watermark{Partition: int32(n + 1)}

		ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})
		got, err := ctl.DiscoverPartitions(context.Background())

		require.NoError(t, err)
		assert.Len(t, got, n)
		assert.Len(t, fake.WatermarkQueries, n+1)
	}
}

func TestDiscoverPartitions_ProbeCeiling(t *testing.T) {
	fake := consumertest.NewFake(watermarks(120)...)
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	got, err := ctl.DiscoverPartitions(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxProbePartitions)
}

func TestDiscoverPartitions_Metadata(t *testing.T) {
	fake := consumertest.NewFake(watermarks(120)...)
	lister := &consumertest.Lister{Fake: fake, Partitions: make([]int32, 120)}
	for i := range lister.Partitions {
		lister.Partitions[i] = int32(i)
	}

	ctl := NewController(lister, "orders", Options{})
	got, err := ctl.DiscoverPartitions(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 120)
	assert.Equal(t, 1, lister.ListCount)
	// 水位一次批量查询，不逐个分区请求
	assert.Equal(t, 1, lister.BatchCount)
	assert.Empty(t, fake.WatermarkQueries)
}

func TestDiscoverPartitions_MetadataFallsBackToProbe(t *testing.T) {
	fake := consumertest.NewFake(watermarks(2)...)
	lister := &consumertest.Lister{Fake: fake, ListErr: errors.New("metadata unavailable")}

	ctl := NewController(lister, "orders", Options{})
	got, err := ctl.DiscoverPartitions(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDiscoverPartitions_MetadataWatermarkErrorFallsBack(t *testing.T) {
	fake := consumertest.NewFake(watermarks(2)...)
	lister := &consumertest.Lister{Fake: fake, Partitions: []int32{0, 1, 2}}

	ctl := NewController(lister, "orders", Options{})
	got, err := ctl.DiscoverPartitions(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, lister.BatchCount)
	assert.Len(t, fake.WatermarkQueries, 3)
}

func TestDiscoverPartitions_ProbeModeIgnoresMetadata(t *testing.T) {
	fake := consumertest.NewFake(watermarks(2)...)
	lister := &consumertest.Lister{Fake: fake, Partitions: []int32{0, 1, 2, 3}}

	ctl := NewController(lister, "orders", Options{Discovery: DiscoveryProbe})
	got, err := ctl.DiscoverPartitions(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Zero(t, lister.ListCount)
}

func TestAssignAllPartitions(t *testing.T) {
	fake := consumertest.NewFake(watermarks(4)...)
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	assigned, err := ctl.AssignAllPartitions(context.Background())
	require.NoError(t, err)

	require.Len(t, fake.Assigned, 4)
	assert.Equal(t, assigned, fake.Assigned)
	for i, po := range fake.Assigned {
		assert.Equal(t, int32(i), po.Partition)
		assert.Equal(t, consumer.OffsetUnset, po.Offset)
	}
	assert.Empty(t, fake.StoredOffsets())
}

func TestAssignAllPartitions_NoPartitions(t *testing.T) {
	fake := consumertest.NewFake()
	ctl := NewController(fake, "missing", Options{Discovery: DiscoveryProbe})

	_, err := ctl.AssignAllPartitions(context.Background())
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNoPartitions))
	assert.Zero(t, fake.AssignCount)
}

func TestForceEarliest(t *testing.T) {
	fake := consumertest.NewFake(
		consumer.Watermark{Partition: 0, Low: 0, High: 10},
		consumer.Watermark{Partition: 1, Low: 5, High: 20},
	)
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	assigned, err := ctl.ForceEarliest(context.Background())
	require.NoError(t, err)

	want := []consumer.PartitionOffset{{Partition: 0, Offset: 0}, {Partition: 1, Offset: 5}}
	assert.Equal(t, want, assigned)
	assert.Equal(t, want, fake.Assigned)
	assert.Equal(t, want, fake.StoredOffsets())
}

func TestForceEarliest_Idempotent(t *testing.T) {
	fake := consumertest.NewFake(watermarks(3)...)
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	first, err := ctl.ForceEarliest(context.Background())
	require.NoError(t, err)
	second, err := ctl.ForceEarliest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, fake.Assigned, 3)
	assert.Equal(t, 2, fake.AssignCount)
}

func TestForceEarliest_AssignError(t *testing.T) {
	fake := consumertest.NewFake(watermarks(1)...)
	fake.AssignErr = errors.New("broker down")
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	_, err := ctl.ForceEarliest(context.Background())
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeAssign))
}

func TestForceByTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fake := consumertest.NewFake(
		consumer.Watermark{Partition: 0, Low: 0, High: 3},
		consumer.Watermark{Partition: 1, Low: 10, High: 12},
	)
	fake.PartitionRecords[0] = []consumertest.StoredRecord{
		{Offset: 0, Timestamp: base.Add(-2 * time.Hour)},
		{Offset: 1, Timestamp: base.Add(-time.Minute)},
		{Offset: 2, Timestamp: base.Add(time.Minute)},
	}
	fake.PartitionRecords[1] = []consumertest.StoredRecord{
		{Offset: 10, Timestamp: base.Add(-time.Hour)},
		{Offset: 11, Timestamp: base.Add(-time.Second)},
	}

	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})
	assigned, err := ctl.ForceByTime(context.Background(), base)
	require.NoError(t, err)

	// 分区1没有不早于base的消息，使用高水位
	want := []consumer.PartitionOffset{{Partition: 0, Offset: 2}, {Partition: 1, Offset: 12}}
	assert.Equal(t, want, assigned)
	assert.Equal(t, want, fake.Assigned)
	assert.Equal(t, want, fake.StoredOffsets())

	// 分配的offset对应的消息时间戳都不早于base
	for _, po := range assigned {
		for _, r := range fake.PartitionRecords[po.Partition] {
			if r.Offset == po.Offset {
				assert.False(t, r.Timestamp.Before(base))
			}
		}
	}
}

func TestForceByTime_NoPartitions(t *testing.T) {
	fake := consumertest.NewFake()
	ctl := NewController(fake, "orders", Options{Discovery: DiscoveryProbe})

	_, err := ctl.ForceByTime(context.Background(), time.Now())
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNoPartitions))
}
