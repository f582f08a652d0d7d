package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

const defaultRegistryTimeout = 10 * time.Second

// registryResponse GET /schemas/ids/{id} 响应
type registryResponse struct {
	Schema     string              `json:"schema"`
	SchemaType string              `json:"schemaType"`
	References []registryReference `json:"references"`
}

type registryReference struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Version int    `json:"version"`
}

// registryError 注册中心错误响应
type registryError struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// Fetcher Schema Registry客户端，按id缓存schema
type Fetcher struct {
	cfg        config.SchemaRegistryConfig
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[int32]*Schema
}

// NewFetcher 创建Fetcher
func NewFetcher(cfg config.SchemaRegistryConfig) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrCodeSchemaConnect, "schema registry url is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRegistryTimeout
	}

	return &Fetcher{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache: make(map[int32]*Schema),
	}, nil
}

// Name 注册中心名称
func (f *Fetcher) Name() string {
	return f.cfg.Name
}

// GetSchema 查询schema，已查询过的id直接返回缓存
func (f *Fetcher) GetSchema(ctx context.Context, id int32) (*Schema, error) {
	f.mu.Lock()
	cached, ok := f.cache[id]
	f.mu.Unlock()
	if ok {
		metrics.SchemaLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}

	s, err := f.fetch(ctx, id)
	if err != nil {
		metrics.SchemaLookups.WithLabelValues("error").Inc()
		logger.Warn("schema lookup failed", zap.Int32("schema_id", id), zap.Error(err))
		return nil, err
	}
	metrics.SchemaLookups.WithLabelValues("fetched").Inc()

	f.mu.Lock()
	f.cache[id] = s
	f.mu.Unlock()

	logger.Info("schema fetched successfully",
		zap.String("registry", f.cfg.Name),
		zap.Int32("schema_id", id),
		zap.String("type", string(s.Type)),
	)
	return s, nil
}

// fetch 请求注册中心
func (f *Fetcher) fetch(ctx context.Context, id int32) (*Schema, error) {
	url := fmt.Sprintf("%s/schemas/ids/%d", f.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaFetch, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/vnd.schemaregistry.v1+json")
	if f.cfg.Username != "" {
		req.SetBasicAuth(f.cfg.Username, f.cfg.Password)
	}

	logger.Debug("sending schema registry request", zap.String("url", url))

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaConnect, "failed to send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaFetch, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var regErr registryError
		if err := sonic.Unmarshal(body, &regErr); err == nil && regErr.Message != "" {
			return nil, errors.New(errors.ErrCodeSchemaFetch,
				fmt.Sprintf("schema %d: %s (error code %d)", id, regErr.Message, regErr.ErrorCode))
		}
		return nil, errors.New(errors.ErrCodeSchemaFetch,
			fmt.Sprintf("schema %d: unexpected status %d", id, resp.StatusCode))
	}

	var result registryResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaFetch, "failed to parse response", err)
	}
	if result.Schema == "" {
		return nil, errors.New(errors.ErrCodeSchemaFetch, fmt.Sprintf("schema %d: empty schema in response", id))
	}

	refs := make([]Reference, len(result.References))
	for i, r := range result.References {
		refs[i] = Reference{Name: r.Name, Subject: r.Subject, Version: r.Version}
	}
	return NewSchema(id, Type(result.SchemaType), result.Schema, refs...), nil
}

// Close 关闭客户端
func (f *Fetcher) Close() error {
	f.httpClient.CloseIdleConnections()
	return nil
}

var _ Lookup = (*Fetcher)(nil)
