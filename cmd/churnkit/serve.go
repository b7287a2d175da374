package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/config"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/server"
	"github.com/rushteam/churnkit/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve churn predictions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		monitor := feature.NewMemoryFeatureMonitor(cfg.Monitor.MaxSamples,
			time.Duration(cfg.Monitor.UpdateIntervalS)*time.Second)
		defer monitor.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		predictor, err := buildPredictor(ctx, cfg, monitor, reg)
		if err != nil {
			return err
		}

		srv := server.New(predictor, reg, serverOptions(cfg.Server), zap.L())
		return startServer(ctx, srv.Handler(), resolvePort(servePort, cfg.Server.Port))
	},
}

// buildPredictor 加载模型并创建预测服务；没有模型时返回 nil，服务以未就绪状态启动
func buildPredictor(ctx context.Context, c *config.Config, monitor service.Monitor, reg prometheus.Registerer) (*service.Predictor, error) {
	bundle, err := loadBundle(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "load model")
	}
	if bundle == nil {
		return nil, nil
	}
	opts := append(predictorOptions(c),
		service.WithMonitor(monitor),
		service.WithMetrics(service.NewMetrics(reg)),
		service.WithQualityChecker(feature.NewQualityChecker(zap.L())),
	)
	return service.NewPredictor(bundle, opts...)
}

func serverOptions(c config.ServerConfig) server.Options {
	opts := server.DefaultOptions()
	opts.SlowRequest = c.SlowRequest()
	opts.RateLimit = c.RateLimit
	opts.RateBurst = c.RateBurst
	if len(c.CORSOrigins) > 0 {
		opts.CORSOrigins = c.CORSOrigins
	}
	if c.MaxBodyMB > 0 {
		opts.MaxBodyBytes = int64(c.MaxBodyMB) << 20
	}
	if c.RequestTimeoutMS > 0 {
		opts.RequestTimeout = c.RequestTimeout()
	}
	return opts
}

func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer 监听直到 ctx 结束，然后优雅关闭
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
