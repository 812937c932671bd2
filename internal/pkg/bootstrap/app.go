// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/nacos"
	"storefront/internal/pkg/tracing"
)

// AppCtx 传递给路由注册回调的上下文。
type AppCtx struct {
	Mux *http.ServeMux
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	Config           *config.Config
	RegisterHandlers func(appCtx AppCtx) // 每个服务注册自己独特的 HTTP 路由
}

// StartService 封装了服务的通用启动和优雅关停逻辑：
// 追踪初始化、Nacos 注册、HTTP 服务和收尾清理。
// 阻塞直到收到退出信号或任一组件出错。
func StartService(ctx context.Context, info AppInfo) error {
	cfg := info.Config

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		return err
	}

	// 2. 服务注册（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Nacos.Enabled {
		namingClient, err = nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			return err
		}
		ip, err = outboundIP()
		if err != nil {
			return err
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Logger().Info().Str("service", info.ServiceName).Int("port", info.Port).
			Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Logger().Info().Str("service", info.ServiceName).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 清理按依赖的逆序执行
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				logger.Logger().Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Logger().Error().Err(err).Msg("Error shutting down tracer provider")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Logger().Error().Err(err).Msg("Error shutting down http server")
		}
		return nil
	})

	return g.Wait()
}

// outboundIP 获取本机对外通信使用的 IP，用于服务注册。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
