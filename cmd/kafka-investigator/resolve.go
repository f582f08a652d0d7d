package main

import (
	"fmt"
	"strings"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/internal/consumer"
	"github.com/kafka-investigator/kafka-investigator/internal/session"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
)

const defaultGroupID = "kafka-investigator"

// consumeFlags consume命令的参数，非空时覆盖profile
type consumeFlags struct {
	profile           string
	topic             string
	groupID           string
	offsetReset       string
	connection        string
	brokers           []string
	useSchemaRegistry bool
	schemaRegistry    string
	registryURL       string
}

// resolved 构造会话所需的全部参数
type resolved struct {
	request    session.Request
	connection config.ConnectionConfig
	registry   *config.SchemaRegistryConfig
	// 请求了schema查询但找不到注册中心配置
	registryMissing bool
}

// resolve 合并profile、命令行参数与配置文件
func resolve(cfg *config.Config, f consumeFlags) (*resolved, error) {
	var profile config.ConsumerProfile
	if f.profile != "" {
		p, ok := cfg.ConsumerProfile(f.profile)
		if !ok {
			return nil, errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("consumer profile %q not found", f.profile))
		}
		profile = *p
	}

	topic := firstNonEmpty(f.topic, profile.Topic)
	groupID := firstNonEmpty(f.groupID, profile.GroupID, defaultGroupID)
	resetName := firstNonEmpty(f.offsetReset, profile.OffsetReset)
	reset, ok := consumer.ParseOffsetReset(strings.TrimSpace(resetName))
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigValidate,
			fmt.Sprintf("invalid offset reset %q, expected earliest or latest", resetName))
	}

	r := &resolved{
		request: session.Request{
			Topic:             topic,
			GroupID:           groupID,
			OffsetReset:       reset,
			UseSchemaRegistry: f.useSchemaRegistry || profile.UseSchemaRegistry || f.registryURL != "" || f.schemaRegistry != "",
			SchemaRegistry:    firstNonEmpty(f.schemaRegistry, profile.SchemaRegistry),
		},
	}
	if err := r.request.Validate(); err != nil {
		return nil, err
	}

	// 连接：--broker优先，其次按名称，最后默认连接
	switch {
	case len(f.brokers) > 0:
		r.connection = config.ConnectionConfig{Name: "command-line", Brokers: f.brokers}
	default:
		name := firstNonEmpty(f.connection, profile.Connection)
		conn, ok := cfg.Connection(name)
		if !ok {
			if name == "" {
				return nil, errors.New(errors.ErrCodeConfigValidate,
					"no default connection configured, use --broker or --connection")
			}
			return nil, errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("connection %q not found", name))
		}
		r.connection = *conn
	}

	if !r.request.UseSchemaRegistry {
		return r, nil
	}
	switch {
	case f.registryURL != "":
		r.registry = &config.SchemaRegistryConfig{Name: "command-line", URL: f.registryURL}
	default:
		reg, ok := cfg.SchemaRegistry(r.request.SchemaRegistry)
		if ok {
			r.registry = reg
		} else {
			r.registryMissing = true
		}
	}
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
