// cmd/order-service/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/redis"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
	"storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/infrastructure/adapter"
	"storefront/internal/service/order/interfaces"
	"storefront/internal/zookeeper"
)

const serviceName = "order-service"

// main 是应用的"组装根" (Composition Root)：
// 创建并组装所有依赖项，然后交给 bootstrap 启动。
func main() {
	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to config file")
	flag.Parse()

	logger.Init(serviceName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 持久化层
	db, err := gorm.Open(gormmysql.Open(cfg.MySQL.DSN()), &gorm.Config{})
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := db.AutoMigrate(
		&infrastructure.CustomerModel{},
		&infrastructure.ProductModel{},
		&infrastructure.OrderModel{},
		&infrastructure.OrderLineModel{},
	); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to migrate schema")
	}

	customerRepo := infrastructure.NewGormCustomerRepository(db)
	orderRepo := infrastructure.NewGormOrderRepository(db)

	// 2. 库存后端：MySQL 条件扣减，或 Redis Lua 扣减（热点商品场景）
	var productRepo domain.ProductRepository = infrastructure.NewGormProductRepository(db)
	if cfg.Inventory.Backend == "redis" {
		redisClient, err := redis.NewClient(cfg.Redis.Addrs)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize redis client")
		}
		defer redisClient.Close()

		productRepo, err = adapter.NewInventoryRedisAdapter(redisClient)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize redis inventory adapter")
		}
	}

	// 3. 事件发布
	kafkaWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderPlacedTopic)
	defer kafkaWriter.Close()
	publisher := adapter.NewOrderEventsKafkaAdapter(kafkaWriter)

	// 4. 可选的商品粒度分布式锁
	var locker port.StockLocker
	if cfg.Zookeeper.Enabled {
		zkConn, err := zookeeper.Connect(cfg.Zookeeper.Servers, 5*time.Second)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		defer zkConn.Close()
		locker = adapter.NewZkStockLocker(zkConn)
	}

	// 5. 业务服务与接口层
	admission := application.NewOrderAdmissionService(
		customerRepo, productRepo, orderRepo,
		publisher, locker, otel.Tracer(serviceName),
	)
	handler := interfaces.NewOrderHandler(admission)

	err = bootstrap.StartService(ctx, bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Server.Port,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("service exited with error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
