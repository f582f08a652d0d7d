package config

import (
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "~/.kafkainvestigator/config.yaml"

// Config 全局配置
type Config struct {
	Connections      []ConnectionConfig     `yaml:"connections"`
	SchemaRegistries []SchemaRegistryConfig `yaml:"schema_registries"`
	ConsumerProfiles []ConsumerProfile      `yaml:"consumer_profiles"`
	Session          SessionConfig          `yaml:"session"`
	Export           ExportConfig           `yaml:"export"`
	Log              logger.Config          `yaml:"log"`
	Metrics          MetricsConfig          `yaml:"metrics"`
	Pprof            PprofConfig            `yaml:"pprof"`
}

// ConnectionConfig Kafka连接配置
type ConnectionConfig struct {
	Name    string     `yaml:"name"`
	Default bool       `yaml:"default"`
	Brokers []string   `yaml:"brokers"`
	SASL    SASLConfig `yaml:"sasl"`
	TLS     TLSConfig  `yaml:"tls"`
}

// SASLConfig SASL认证配置
type SASLConfig struct {
	Mechanism string `yaml:"mechanism"` // "", PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// TLSConfig TLS配置
type TLSConfig struct {
	Enabled            bool `yaml:"enabled"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SchemaRegistryConfig Schema Registry配置
type SchemaRegistryConfig struct {
	Name     string `yaml:"name"`
	Default  bool   `yaml:"default"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"` // 秒
}

// ConsumerProfile 预置的消费者参数
type ConsumerProfile struct {
	Name              string `yaml:"name"`
	Connection        string `yaml:"connection"`
	Topic             string `yaml:"topic"`
	GroupID           string `yaml:"group_id"`
	OffsetReset       string `yaml:"offset_reset"` // earliest, latest
	UseSchemaRegistry bool   `yaml:"use_schema_registry"`
	SchemaRegistry    string `yaml:"schema_registry"`
}

// SessionConfig 交互会话参数
type SessionConfig struct {
	PollTimeout         int    `yaml:"poll_timeout"`          // 秒
	WatermarkTimeout    int    `yaml:"watermark_timeout"`     // 秒
	MaxProbePartitions  int    `yaml:"max_probe_partitions"`  // 探测分区上限
	PartitionDiscovery  string `yaml:"partition_discovery"`   // metadata, probe
	PreviewLength       int    `yaml:"preview_length"`        // 原始预览字符数
	SchemaPreviewLength int    `yaml:"schema_preview_length"` // schema预览字符数
	CommitMaxAttempts   int    `yaml:"commit_max_attempts"`
	CommitBackoff       int    `yaml:"commit_backoff"` // 秒，按尝试次数线性增长
}

// ExportConfig 消息导出配置
type ExportConfig struct {
	Directory string `yaml:"directory"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// PprofConfig pprof配置
type PprofConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			PollTimeout:         10,
			WatermarkTimeout:    10,
			MaxProbePartitions:  100,
			PartitionDiscovery:  "metadata",
			PreviewLength:       170,
			SchemaPreviewLength: 150,
			CommitMaxAttempts:   3,
			CommitBackoff:       1,
		},
		Export: ExportConfig{
			Directory: "~/.kafkainvestigator/messages",
		},
		Log: logger.Config{
			Level:          "info",
			Output:         "file",
			FilePath:       "~/.kafkainvestigator/investigator.log",
			Format:         "json",
			EnableSampling: false,
			MaxSize:        20,
			MaxAge:         7,
			MaxBackups:     3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Pprof: PprofConfig{
			Enabled: false,
			Port:    6060,
		},
	}
}

// Connection 按名称查找连接，名称为空时返回默认连接
func (c *Config) Connection(name string) (*ConnectionConfig, bool) {
	for i := range c.Connections {
		conn := &c.Connections[i]
		if name == "" && conn.Default || name != "" && conn.Name == name {
			return conn, true
		}
	}
	return nil, false
}

// SchemaRegistry 按名称查找Schema Registry，名称为空时返回默认项
func (c *Config) SchemaRegistry(name string) (*SchemaRegistryConfig, bool) {
	for i := range c.SchemaRegistries {
		reg := &c.SchemaRegistries[i]
		if name == "" && reg.Default || name != "" && reg.Name == name {
			return reg, true
		}
	}
	return nil, false
}

// ConsumerProfile 按名称查找消费者预置
func (c *Config) ConsumerProfile(name string) (*ConsumerProfile, bool) {
	for i := range c.ConsumerProfiles {
		if c.ConsumerProfiles[i].Name == name {
			return &c.ConsumerProfiles[i], true
		}
	}
	return nil, false
}
