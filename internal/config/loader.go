package config

import (
	"os"

	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/utils"
	"gopkg.in/yaml.v3"
)

const (
	envSASLPassword     = "KAFKA_INVESTIGATOR_SASL_PASSWORD"
	envRegistryPassword = "KAFKA_INVESTIGATOR_REGISTRY_PASSWORD"
)

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	// 读取文件
	data, err := os.ReadFile(utils.ExpandHome(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to read config file", err)
	}

	// 解析YAML
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to parse config file", err)
	}

	applyEnv(cfg)

	// 验证配置
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault 文件不存在时返回默认配置
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(utils.ExpandHome(path)); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyEnv(cfg)
		return cfg, nil
	}
	return Load(path)
}

// applyEnv 从环境变量覆盖未配置的敏感信息
func applyEnv(cfg *Config) {
	if password := os.Getenv(envSASLPassword); password != "" {
		for i := range cfg.Connections {
			if cfg.Connections[i].SASL.Password == "" {
				cfg.Connections[i].SASL.Password = password
			}
		}
	}
	if password := os.Getenv(envRegistryPassword); password != "" {
		for i := range cfg.SchemaRegistries {
			if cfg.SchemaRegistries[i].Password == "" {
				cfg.SchemaRegistries[i].Password = password
			}
		}
	}
}
