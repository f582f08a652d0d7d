package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimit(t *testing.T) {
	assert.Equal(t, "abc", Limit("abc", 5, " [more...]"))
	assert.Equal(t, "abc", Limit("abc", 3, " [more...]"))
	assert.Equal(t, "ab [more...]", Limit("abcd", 2, " [more...]"))
	assert.Equal(t, "héł", Limit("héłło", 3, ""))
	assert.Equal(t, "abcd", Limit("abcd", 0, "!"))
}

func TestRawText(t *testing.T) {
	assert.Equal(t, "<null>", RawText(nil))
	assert.Equal(t, "", RawText([]byte{}))
	assert.Equal(t, "hello", RawText([]byte("hello")))
	assert.Equal(t, "�a", RawText([]byte{0xff, 0xfe, 'a'}))
}

func TestToString(t *testing.T) {
	id := int32(7)
	var nilID *int32
	assert.Equal(t, "7", ToString(&id))
	assert.Equal(t, "", ToString(nilID))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "42", ToString(int64(42)))
	assert.Equal(t, "x", ToString([]byte("x")))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c d", SingleLine("a\nb\tc\r\nd"))
}
