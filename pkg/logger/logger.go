package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kafka-investigator/kafka-investigator/pkg/utils"
)

// 日志输出目标
const (
	OutputNone   = "none"
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputBoth   = "both"
)

var globalLogger *zap.Logger

// Config 日志配置
type Config struct {
	Level          string `yaml:"level"`           // debug, info, warn, error
	Output         string `yaml:"output"`          // none, stdout, file, both
	FilePath       string `yaml:"file_path"`       // 日志文件路径，支持~
	Format         string `yaml:"format"`          // json, console
	EnableSampling bool   `yaml:"enable_sampling"` // 是否启用采样
	MaxSize        int    `yaml:"max_size"`        // 日志文件最大大小(MB)
	MaxAge         int    `yaml:"max_age"`         // 日志文件最大保留天数
	MaxBackups     int    `yaml:"max_backups"`     // 日志文件最大备份数
}

// Init 初始化日志
//
// 交互会话占用终端，stdout输出会与菜单交错，因此默认只写文件。
// output为none时所有日志被丢弃。
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	sinks, err := sinksFor(cfg)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		globalLogger = zap.NewNop()
		return nil
	}

	encoder := newEncoder(cfg.Format)
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}
	core := zapcore.NewTee(cores...)

	if cfg.EnableSampling {
		// 每秒同一条消息前100条全部记录，之后每1000条记录1条
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 1000)
	}

	globalLogger = zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.Int("pid", os.Getpid())),
	)
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func sinksFor(cfg Config) ([]zapcore.WriteSyncer, error) {
	file := func() zapcore.WriteSyncer {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   utils.ExpandHome(cfg.FilePath),
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		})
	}

	switch cfg.Output {
	case OutputNone:
		return nil, nil
	case OutputStdout:
		return []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}, nil
	case OutputFile:
		return []zapcore.WriteSyncer{file()}, nil
	case OutputBoth:
		return []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout), file()}, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

// Get 获取全局logger
func Get() *zap.Logger {
	if globalLogger == nil {
		// 如果未初始化，使用默认配置
		globalLogger, _ = zap.NewProduction()
	}
	return globalLogger
}

// Set 替换全局logger，测试中用于静默输出
func Set(l *zap.Logger) {
	globalLogger = l
}

// Sync 同步日志
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// With 创建带字段的logger
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// ForTopic topic范围的子logger
func ForTopic(topic string) *zap.Logger {
	return Get().With(zap.String("topic", topic))
}

// ForSession 会话范围的子logger，每条日志带topic和消费组
func ForSession(topic, groupID string) *zap.Logger {
	return Get().With(zap.String("topic", topic), zap.String("group_id", groupID))
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info 信息日志
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Error 错误日志
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}
