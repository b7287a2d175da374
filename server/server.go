// Package server 是预测服务的 HTTP 层：chi 路由、CORS、限流、请求校验与各接口处理。
//
// 没有加载到模型时服务照常启动，/health 返回 503，预测接口返回 503。
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rushteam/churnkit/service"
)

// Options HTTP 层配置
type Options struct {
	SlowRequest    time.Duration // 超过即告警，0 关闭
	RateLimit      float64       // 每秒请求数，0 关闭
	RateBurst      int
	CORSOrigins    []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// DefaultOptions 默认配置
func DefaultOptions() Options {
	return Options{
		SlowRequest:    50 * time.Millisecond,
		CORSOrigins:    []string{"*"},
		MaxBodyBytes:   32 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Server 持有预测服务与 HTTP 依赖
type Server struct {
	predictor *service.Predictor // nil 表示未就绪
	validate  *validator.Validate
	gatherer  prometheus.Gatherer
	opts      Options
	logger    *zap.Logger
}

// New 创建 Server；predictor 为 nil 时只提供健康检查、监控与指标。
// gatherer 为 nil 时使用 prometheus.DefaultGatherer。
func New(predictor *service.Predictor, gatherer prometheus.Gatherer, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultOptions().MaxBodyBytes
	}
	return &Server{
		predictor: predictor,
		validate:  validator.New(),
		gatherer:  gatherer,
		opts:      opts,
		logger:    logger,
	}
}

// Ready 是否已加载模型
func (s *Server) Ready() bool {
	return s.predictor != nil
}

// Handler 构建路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(processTime(s.logger, s.opts.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{HeaderProcessTime, HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/monitoring", s.handleMonitoring)
	r.Get("/model/info", s.handleModelInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			burst := max(s.opts.RateBurst, 1)
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)))
		}
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}
		r.Post("/predict", s.handlePredict)
		r.Post("/predict/batch", s.handlePredictBatch)
		r.Post("/predict/batch/csv", s.handlePredictCSV)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: "Not Found", RequestID: RequestIDFromContext(r.Context())})
	})
	return r
}
