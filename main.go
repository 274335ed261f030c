package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"processor-service/api"
	_ "processor-service/docs"
	"processor-service/service"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const shutdownTimeout = 30 * time.Second

// @title 数据预处理服务 API
// @version 1.0
// @description 表格数据自动预处理服务，提供缺失值、异常值、缩放、编码、特征选择与性能验证
// @BasePath /swagger/processor-service
func main() {
	port := service.GlobalConfig.ListenPort
	baseContext := service.GlobalConfig.BaseContext

	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if baseContext != "" {
		mux.Route(baseContext, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux)
			r.Handle("/metrics", promhttp.Handler())
			r.Handle("/swagger*", httpSwagger.WrapHandler)
		})
	} else {
		api.InitRoute(mux)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(port), mux)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := service.Shutdown(ctx); err != nil {
			slog.Warn("作业未在超时前全部停止", "error", err)
		}
		if err := s.GracefulStop(); err != nil {
			slog.Error("停止HTTP服务失败", "error", err)
		}
	}()

	slog.Info("服务启动", "port", port, "base_context", baseContext)
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("error: %v", err)
	}
}
