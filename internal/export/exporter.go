// Package export 将消息的key和value导出到文件
package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kafka-investigator/kafka-investigator/internal/console"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"github.com/kafka-investigator/kafka-investigator/pkg/utils"
	"go.uber.org/zap"
)

const (
	KeySuffix   = "-key"
	ValueSuffix = "-value"
)

var errDeclined = stderrors.New("export declined")

// FileExporter 交互式询问目录和文件名前缀后写出 <prefix>-key 与 <prefix>-value
type FileExporter struct {
	console    *console.Console
	defaultDir string
}

// NewFileExporter 创建FileExporter
func NewFileExporter(con *console.Console, defaultDir string) *FileExporter {
	return &FileExporter{
		console:    con,
		defaultDir: utils.ExpandHome(defaultDir),
	}
}

// Export 导出消息，写文件失败时询问是否重试
func (e *FileExporter) Export(ctx context.Context, record *consumer.Record) error {
	for {
		keyPath, valuePath, err := e.exportOnce(ctx, record)
		switch {
		case err == nil:
			metrics.ExportsTotal.WithLabelValues("success").Inc()
			logger.Info("message exported",
				zap.String("topic", record.Topic),
				zap.Int32("partition", record.Partition),
				zap.Int64("offset", record.Offset),
				zap.String("key_file", keyPath),
				zap.String("value_file", valuePath),
			)
			e.console.Success("Message exported to [%s] and [%s].", keyPath, valuePath)
			return nil
		case stderrors.Is(err, errDeclined):
			metrics.ExportsTotal.WithLabelValues("declined").Inc()
			e.console.Warn("Export cancelled.")
			return nil
		case !errors.IsCode(err, errors.ErrCodeExport):
			// 输入结束或会话取消
			return err
		}

		metrics.ExportsTotal.WithLabelValues("error").Inc()
		logger.Error("message export failed", zap.Error(err))
		e.console.Error("Error exporting message: %v", err)

		retry, cerr := e.console.Confirm(ctx, "Do you want to try again?")
		if cerr != nil {
			return cerr
		}
		if !retry {
			e.console.Warn("Message not exported.")
			return nil
		}
	}
}

func (e *FileExporter) exportOnce(ctx context.Context, record *consumer.Record) (string, string, error) {
	dir, err := e.console.Ask(ctx, "Directory", e.defaultDir)
	if err != nil {
		return "", "", err
	}
	dir = utils.ExpandHome(dir)

	defaultPrefix := fmt.Sprintf("%s-p%d-o%d", record.Topic, record.Partition, record.Offset)
	prefix, err := e.console.Ask(ctx, "File name prefix", defaultPrefix)
	if err != nil {
		return "", "", err
	}

	keyPath := filepath.Join(dir, prefix+KeySuffix)
	valuePath := filepath.Join(dir, prefix+ValueSuffix)

	if exists(keyPath) || exists(valuePath) {
		ok, err := e.console.Confirm(ctx, fmt.Sprintf("Files with prefix [%s] already exist in [%s]. Overwrite?", prefix, dir))
		if err != nil {
			return "", "", err
		}
		if !ok {
			return "", "", errDeclined
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.Wrap(errors.ErrCodeExport, "failed to create directory", err)
	}
	if err := os.WriteFile(keyPath, record.Key, 0o644); err != nil {
		return "", "", errors.Wrap(errors.ErrCodeExport, "failed to write key file", err)
	}
	if err := os.WriteFile(valuePath, record.Value, 0o644); err != nil {
		return "", "", errors.Wrap(errors.ErrCodeExport, "failed to write value file", err)
	}
	return keyPath, valuePath, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
