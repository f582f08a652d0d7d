package config

import (
	"fmt"
	"strings"

	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
)

// Validate 验证配置
func Validate(cfg *Config) error {
	// 验证连接配置
	defaults := 0
	seen := make(map[string]bool, len(cfg.Connections))
	for _, conn := range cfg.Connections {
		if conn.Name == "" || strings.Contains(conn.Name, " ") {
			return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("connections: invalid name %q", conn.Name))
		}
		if seen[conn.Name] {
			return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("connections: duplicated name %q", conn.Name))
		}
		seen[conn.Name] = true
		if len(conn.Brokers) == 0 {
			return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("connections.%s.brokers is required", conn.Name))
		}
		switch strings.ToUpper(conn.SASL.Mechanism) {
		case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.New(errors.ErrCodeConfigValidate,
				fmt.Sprintf("connections.%s.sasl.mechanism %q is not supported", conn.Name, conn.SASL.Mechanism))
		}
		if conn.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return errors.New(errors.ErrCodeConfigValidate, "only one connection can be default")
	}

	// 验证Schema Registry配置
	defaults = 0
	for _, reg := range cfg.SchemaRegistries {
		if reg.Name == "" {
			return errors.New(errors.ErrCodeConfigValidate, "schema_registries: name is required")
		}
		if reg.URL == "" {
			return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("schema_registries.%s.url is required", reg.Name))
		}
		if reg.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return errors.New(errors.ErrCodeConfigValidate, "only one schema registry can be default")
	}

	// 验证消费者预置
	for _, p := range cfg.ConsumerProfiles {
		if err := ValidateProfile(p); err != nil {
			return err
		}
	}

	// 验证会话配置
	if cfg.Session.PollTimeout <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "session.poll_timeout must be positive")
	}
	if cfg.Session.WatermarkTimeout <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "session.watermark_timeout must be positive")
	}
	if cfg.Session.MaxProbePartitions <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "session.max_probe_partitions must be positive")
	}
	if cfg.Session.PartitionDiscovery != "metadata" && cfg.Session.PartitionDiscovery != "probe" {
		return errors.New(errors.ErrCodeConfigValidate, "session.partition_discovery must be 'metadata' or 'probe'")
	}
	// 验证日志配置
	switch cfg.Log.Output {
	case logger.OutputNone, logger.OutputStdout, logger.OutputBoth:
	case logger.OutputFile:
		if cfg.Log.FilePath == "" {
			return errors.New(errors.ErrCodeConfigValidate, "log.file_path is required when log.output is 'file'")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("log.output %q is not supported", cfg.Log.Output))
	}

	if cfg.Session.CommitMaxAttempts <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "session.commit_max_attempts must be positive")
	}
	if cfg.Session.CommitBackoff < 0 {
		cfg.Session.CommitBackoff = 0
	}
	if cfg.Session.PreviewLength <= 0 {
		cfg.Session.PreviewLength = 170 // 默认值
	}
	if cfg.Session.SchemaPreviewLength <= 0 {
		cfg.Session.SchemaPreviewLength = 150 // 默认值
	}

	// 验证监控配置
	if cfg.Metrics.Enabled && cfg.Metrics.Port <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "metrics.port must be positive when enabled")
	}

	// 验证pprof配置
	if cfg.Pprof.Enabled && cfg.Pprof.Port <= 0 {
		return errors.New(errors.ErrCodeConfigValidate, "pprof.port must be positive when enabled")
	}

	// 验证端口冲突
	if cfg.Metrics.Enabled && cfg.Pprof.Enabled && cfg.Metrics.Port == cfg.Pprof.Port {
		return errors.New(errors.ErrCodeConfigValidate, "metrics.port and pprof.port cannot be the same")
	}

	return nil
}

// ValidateProfile 验证消费者预置参数
func ValidateProfile(p ConsumerProfile) error {
	if p.Name == "" || strings.Contains(p.Name, " ") {
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles: invalid name %q", p.Name))
	}
	if p.Topic == "" || strings.Contains(p.Topic, " ") {
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles.%s: invalid topic", p.Name))
	}
	if p.GroupID == "" || strings.Contains(p.GroupID, " ") {
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles.%s: invalid group_id", p.Name))
	}
	if strings.Contains(p.Connection, " ") {
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles.%s: invalid connection", p.Name))
	}
	switch strings.ToLower(p.OffsetReset) {
	case "", "earliest", "latest":
	default:
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles.%s: offset_reset must be 'earliest' or 'latest'", p.Name))
	}
	if p.UseSchemaRegistry && strings.Contains(p.SchemaRegistry, " ") {
		return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer_profiles.%s: invalid schema_registry", p.Name))
	}
	return nil
}

// String 返回配置的字符串表示（隐藏敏感信息）
func (c *Config) String() string {
	names := make([]string, 0, len(c.Connections))
	for _, conn := range c.Connections {
		names = append(names, conn.Name)
	}
	return fmt.Sprintf("Config{Connections: %v, SchemaRegistries: %d, ConsumerProfiles: %d, PollTimeout: %ds, Discovery: %s}",
		names,
		len(c.SchemaRegistries),
		len(c.ConsumerProfiles),
		c.Session.PollTimeout,
		c.Session.PartitionDiscovery,
	)
}
