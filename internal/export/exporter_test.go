package export

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kafka-investigator/kafka-investigator/internal/console"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
)

func init() {
	logger.Set(zap.NewNop())
	color.NoColor = true
}

var record = &consumer.Record{
	Topic:     "orders",
	Partition: 1,
	Offset:    42,
	Key:       []byte("order-1"),
	Value:     []byte{0x00, 0x00, 0x00, 0x00, 0x07, 0x02},
}

func newExporter(dir, input string) (*FileExporter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewFileExporter(console.New(strings.NewReader(input), out), dir), out
}

func TestExport_DefaultPrefix(t *testing.T) {
	dir := t.TempDir()
	e, out := newExporter(dir, "\n\n")

	require.NoError(t, e.Export(context.Background(), record))

	key, err := os.ReadFile(filepath.Join(dir, "orders-p1-o42-key"))
	require.NoError(t, err)
	assert.Equal(t, record.Key, key)

	value, err := os.ReadFile(filepath.Join(dir, "orders-p1-o42-value"))
	require.NoError(t, err)
	assert.Equal(t, record.Value, value)

	assert.Contains(t, out.String(), "Message exported")
}

func TestExport_CreatesDirectoryAndNullKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	e, _ := newExporter("", dir+"\nmsg\n")

	r := *record
	r.Key = nil
	require.NoError(t, e.Export(context.Background(), &r))

	key, err := os.ReadFile(filepath.Join(dir, "msg-key"))
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestExport_OverwriteDeclined(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "msg-key")
	require.NoError(t, os.WriteFile(keyPath, []byte("old"), 0o644))

	e, out := newExporter(dir, "\nmsg\nn\n")
	require.NoError(t, e.Export(context.Background(), record))

	old, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
	assert.Contains(t, out.String(), "Export cancelled.")
}

func TestExport_OverwriteConfirmed(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "msg-key")
	require.NoError(t, os.WriteFile(keyPath, []byte("old"), 0o644))

	e, _ := newExporter(dir, "\nmsg\ny\n")
	require.NoError(t, e.Export(context.Background(), record))

	key, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, record.Key, key)
}

func TestExport_RetryAfterFailure(t *testing.T) {
	dir := t.TempDir()
	// 目录位置被文件占用，第一次导出失败
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))
	good := filepath.Join(dir, "good")

	e, out := newExporter(dir, blocked+"\nmsg\ny\n"+good+"\nmsg\n")
	require.NoError(t, e.Export(context.Background(), record))

	assert.Contains(t, out.String(), "Error exporting message")
	_, err := os.Stat(filepath.Join(good, "msg-value"))
	assert.NoError(t, err)
}

func TestExport_FailureWithoutRetry(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	e, out := newExporter(dir, blocked+"\nmsg\nn\n")
	require.NoError(t, e.Export(context.Background(), record))
	assert.Equal(t, 1, strings.Count(out.String(), "Error exporting message"))
	assert.Contains(t, out.String(), "Message not exported.")
}

func TestExport_InputClosed(t *testing.T) {
	for _, input := range []string{"", "/tmp\n", "\nmsg\n"} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "msg-key"), nil, 0o644))

		e, out := newExporter(dir, input)
		err := e.Export(context.Background(), record)
		assert.ErrorIs(t, err, io.EOF, input)
		assert.NotContains(t, out.String(), "Do you want to try again?", input)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, _ := newExporter(t.TempDir(), "\n\n")
	assert.ErrorIs(t, e.Export(ctx, record), context.Canceled)
}
