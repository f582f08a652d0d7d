package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	c := New(strings.NewReader(input), out)
	c.now = func() time.Time { return time.Date(2024, 1, 1, 9, 5, 7, 0, time.UTC) }
	return c, out
}

func TestConsole_Lines(t *testing.T) {
	c, out := newTestConsole("")
	c.Info("polling %s", "orders")
	c.Error("failed")

	assert.Equal(t, "09:05:07 > polling orders\n09:05:07 > failed\n", out.String())
}

func TestConsole_Table(t *testing.T) {
	c, out := newTestConsole("")
	c.Table([]string{"Partition", "Offset"}, [][]string{{"0", "12"}, {"10", "5"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Partition  Offset", lines[0])
	assert.Equal(t, "---------  ------", lines[1])
	assert.Equal(t, "0          12", lines[2])
}

func TestConsole_ReadKey(t *testing.T) {
	c, _ := newTestConsole("N\n\nquit\n é \n")
	ctx := context.Background()

	for _, want := range []struct {
		key   rune
		input string
	}{
		{key: 'n', input: "N"},
		{key: NoKey, input: ""},
		{key: NoKey, input: "quit"},
		{key: 'é', input: "é"},
	} {
		k, input, err := c.ReadKey(ctx, "> ")
		require.NoError(t, err)
		assert.Equal(t, want.key, k, want.input)
		assert.Equal(t, want.input, input)
	}

	_, _, err := c.ReadKey(ctx, "> ")
	assert.ErrorIs(t, err, io.EOF)
	_, _, err = c.ReadKey(ctx, "> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsole_ReadLine_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := New(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ReadLine(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole_Ask(t *testing.T) {
	c, out := newTestConsole("\n  msg-1  \n")
	ctx := context.Background()

	v, err := c.Ask(ctx, "Directory", "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", v)
	assert.Contains(t, out.String(), "Directory [/tmp/out]: ")

	v, err = c.Ask(ctx, "Prefix", "")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", v)
}

func TestConsole_Confirm(t *testing.T) {
	c, out := newTestConsole("maybe\ny\nNO\n")
	ctx := context.Background()

	ok, err := c.Confirm(ctx, "Commit?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Please answer Y or N.")

	ok, err = c.Confirm(ctx, "Commit?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsole_Menu(t *testing.T) {
	c, out := newTestConsole("")
	c.Menu("Consumer", []Option{{Key: 'n', Label: "Next"}, {Key: 'q', Label: "Quit"}})
	assert.Equal(t, "\nConsumer\n  [n] Next\n  [q] Quit\n", out.String())
}
