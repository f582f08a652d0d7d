package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
)

const sampleConfig = `
connections:
  - name: local
    default: true
    brokers: ["localhost:9092"]
  - name: cloud
    brokers: ["broker-1:9093", "broker-2:9093"]
    sasl:
      mechanism: PLAIN
      username: svc
    tls:
      enabled: true
schema_registries:
  - name: local-sr
    default: true
    url: http://localhost:8081
consumer_profiles:
  - name: orders
    connection: cloud
    topic: orders
    group_id: investigator
    offset_reset: earliest
    use_schema_registry: true
session:
  poll_timeout: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv(envSASLPassword, "from-env")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Len(t, cfg.Connections, 2)
	assert.Equal(t, 3, cfg.Session.PollTimeout)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 10, cfg.Session.WatermarkTimeout)
	assert.Equal(t, 100, cfg.Session.MaxProbePartitions)
	assert.Equal(t, 3, cfg.Session.CommitMaxAttempts)
	assert.Equal(t, "file", cfg.Log.Output)

	conn, ok := cfg.Connection("")
	require.True(t, ok)
	assert.Equal(t, "local", conn.Name)

	conn, ok = cfg.Connection("cloud")
	require.True(t, ok)
	assert.Equal(t, "from-env", conn.SASL.Password)

	reg, ok := cfg.SchemaRegistry("")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8081", reg.URL)

	p, ok := cfg.ConsumerProfile("orders")
	require.True(t, ok)
	assert.Equal(t, "investigator", p.GroupID)

	_, ok = cfg.ConsumerProfile("missing")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigLoad))

	_, err = Load(writeConfig(t, "connections: [this is: not valid"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigLoad))
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Session, cfg.Session)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "connection without brokers", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{{Name: "a"}}
		}},
		{name: "duplicated connection", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{{Name: "a", Brokers: []string{"x"}}, {Name: "a", Brokers: []string{"y"}}}
		}},
		{name: "two default connections", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{
				{Name: "a", Default: true, Brokers: []string{"x"}},
				{Name: "b", Default: true, Brokers: []string{"y"}},
			}
		}},
		{name: "unsupported sasl", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{{Name: "a", Brokers: []string{"x"}, SASL: SASLConfig{Mechanism: "GSSAPI"}}}
		}},
		{name: "registry without url", mutate: func(c *Config) {
			c.SchemaRegistries = []SchemaRegistryConfig{{Name: "sr"}}
		}},
		{name: "profile with spaces in topic", mutate: func(c *Config) {
			c.ConsumerProfiles = []ConsumerProfile{{Name: "p", Topic: "my topic", GroupID: "g"}}
		}},
		{name: "profile bad offset reset", mutate: func(c *Config) {
			c.ConsumerProfiles = []ConsumerProfile{{Name: "p", Topic: "t", GroupID: "g", OffsetReset: "middle"}}
		}},
		{name: "bad discovery", mutate: func(c *Config) { c.Session.PartitionDiscovery = "guess" }},
		{name: "unknown log output", mutate: func(c *Config) { c.Log.Output = "syslog" }},
		{name: "log file without path", mutate: func(c *Config) { c.Log.FilePath = "" }},
		{name: "zero poll timeout", mutate: func(c *Config) { c.Session.PollTimeout = 0 }},
		{name: "port conflict", mutate: func(c *Config) {
			c.Metrics.Enabled, c.Pprof.Enabled = true, true
			c.Pprof.Port = c.Metrics.Port
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfigValidate))
		})
	}

	assert.NoError(t, Validate(DefaultConfig()))
}
