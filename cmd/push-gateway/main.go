// cmd/push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain"
)

const (
	serviceName   = "push-gateway"
	consumerGroup = "push-gateway-consumer-group"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护所有活跃的连接，按客户 id 索引。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

// Client 是一个已升级的 websocket 连接。
type Client struct {
	customerID string
	conn       *websocket.Conn
	send       chan []byte
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.customerID] = client
			h.lock.Unlock()
			logger.Logger().Info().Str("customer_id", client.customerID).Msg("Client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.customerID]; ok {
				delete(h.clients, client.customerID)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Logger().Info().Str("customer_id", client.customerID).Msg("Client unregistered")
		}
	}
}

// push 把消息投递给指定客户的连接，客户不在线时直接丢弃。
func (h *Hub) push(customerID string, payload []byte) {
	h.lock.RLock()
	client, ok := h.clients[customerID]
	h.lock.RUnlock()
	if !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		// 发送缓冲满说明连接已经不健康，踢掉
		h.unregister <- client
	}
}

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

	hub := newHub()
	go hub.run()

	reader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.OrderPlacedTopic, consumerGroup)
	defer reader.Close()

	// 消费 OrderPlaced 事件并推送给对应客户
	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Logger().Error().Err(err).Msg("could not read message, retrying")
				time.Sleep(time.Second)
				continue
			}

			var event domain.OrderPlaced
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Logger().Error().Err(err).Msg("failed to unmarshal order placed event, skipping")
				continue
			}
			hub.push(event.CustomerID, msg.Value)
		}
	}()

	port, _ := strconv.Atoi(getEnv("PUSH_GATEWAY_PORT", "8091"))
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	server := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Logger().Info().Int("port", port).Msg("Push gateway listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Logger().Fatal().Err(err).Msg("server exited with error")
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{customerID: customerID, conn: conn, send: make(chan []byte, 16)}
	hub.register <- client

	go client.writePump()
	go client.readPump(hub)
}

// writePump 把 send 通道里的消息写到连接上。
func (c *Client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump 只用来感知客户端断开。
func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
