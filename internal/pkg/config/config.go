package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 order-service 的全部配置。
// 先读 yaml 文件，再用环境变量覆盖关键项，方便容器化部署。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Inventory InventoryConfig `yaml:"inventory"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN 拼出 go-sql-driver 格式的连接串。
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Addrs []string `yaml:"addrs"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	OrderPlacedTopic string   `yaml:"order_placed_topic"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Enabled bool     `yaml:"enabled"`
	Servers []string `yaml:"servers"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// InventoryConfig 选择库存后端。mysql 用条件 UPDATE 扣减，
// redis 用 Lua 脚本扣减，两者都能原子防超卖。
type InventoryConfig struct {
	Backend string `yaml:"backend"` // "mysql" | "redis"
}

// Load 读取配置文件并应用环境变量覆盖。path 为空时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Inventory.Backend != "mysql" && cfg.Inventory.Backend != "redis" {
		return nil, fmt.Errorf("unsupported inventory backend: %q", cfg.Inventory.Backend)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App:    AppConfig{Name: "order-service", Env: "local"},
		Server: ServerConfig{Port: 8080},
		MySQL: MySQLConfig{
			Host: "localhost", Port: 3306,
			User: "root", Database: "storefront",
		},
		Redis: RedisConfig{Addrs: []string{"localhost:6379"}},
		Kafka: KafkaConfig{
			Brokers:          []string{"localhost:9092"},
			OrderPlacedTopic: "order-placed-topic",
		},
		Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Inventory: InventoryConfig{Backend: "mysql"},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.MySQL.Database)
	cfg.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
	cfg.Inventory.Backend = getEnv("INVENTORY_BACKEND", cfg.Inventory.Backend)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v, ok := os.LookupEnv("REDIS_ADDRS"); ok {
		cfg.Redis.Addrs = splitAndTrim(v)
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_SERVERS"); ok {
		cfg.Zookeeper.Servers = splitAndTrim(v)
		cfg.Zookeeper.Enabled = true
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
