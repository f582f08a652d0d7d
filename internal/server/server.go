package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/pkg/logger"
	"go.uber.org/zap"
)

// Server 会话运行期间的metrics与pprof服务
type Server struct {
	metricsServer *http.Server
	pprofServer   *http.Server
	ready         atomic.Bool
}

// NewServer 创建HTTP服务器，未启用的服务不会监听端口
func NewServer(cfg config.Config) *Server {
	s := &Server{}

	if cfg.Metrics.Enabled {
		s.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: s.metricsHandler(cfg.Metrics.Path),
		}
	}

	if cfg.Pprof.Enabled {
		s.pprofServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Pprof.Port),
			Handler: http.DefaultServeMux, // pprof已自动注册到DefaultServeMux
		}
	}

	return s
}

func (s *Server) metricsHandler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	return mux
}

// SetReady 标记会话是否已订阅topic
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start 启动服务器
func (s *Server) Start() {
	for _, srv := range []*http.Server{s.metricsServer, s.pprofServer} {
		if srv == nil {
			continue
		}
		go func(srv *http.Server) {
			logger.Info("starting http server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) {
	for _, srv := range []*http.Server{s.metricsServer, s.pprofServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown http server", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
}

// healthHandler 健康检查
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler 会话订阅成功后就绪
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
