package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome 展开路径中的~前缀，无法获取home目录时原样返回
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
