package utils

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ToString 转换为字符串
func ToString(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case *int32:
		if val == nil {
			return ""
		}
		return strconv.FormatInt(int64(*val), 10)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%f", val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Limit 截断字符串到maxLength个字符，超出时追加indicator
func Limit(s string, maxLength int, indicator string) string {
	if maxLength <= 0 || utf8.RuneCountInString(s) <= maxLength {
		return s
	}

	runes := []rune(s)
	return string(runes[:maxLength]) + indicator
}

// RawText 将字节按UTF-8展示，nil显示为<null>
func RawText(b []byte) string {
	if b == nil {
		return "<null>"
	}
	return strings.ToValidUTF8(string(b), "�")
}

// SingleLine 将换行和制表符替换为空格，便于在表格中展示
func SingleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}
