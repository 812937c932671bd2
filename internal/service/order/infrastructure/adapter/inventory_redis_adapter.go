package adapter

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/order/domain"
)

const reserveScriptName = "reserve_stock"

// InventoryRedisAdapter 是 ProductRepository 的 Redis 实现，
// 面向高并发热点商品。商品以 hash 存储（product:{id}），
// 扣减通过 Lua 脚本在服务端一次完成，天然没有 check-then-act 窗口。
type InventoryRedisAdapter struct {
	redisClient *redis.Client
}

// NewInventoryRedisAdapter 创建适配器，并在初始化时加载扣减脚本。
func NewInventoryRedisAdapter(redisClient *redis.Client) (*InventoryRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(reserveScriptName, reserveStockScript); err != nil {
		return nil, fmt.Errorf("failed to load critical reserve script: %w", err)
	}
	return &InventoryRedisAdapter{redisClient: redisClient}, nil
}

func productKey(id string) string {
	return fmt.Sprintf("product:{%s}", id)
}

// FindAllByID 用 pipeline 批量读取商品 hash，不存在的 id 省略。
func (a *InventoryRedisAdapter) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	pipe := a.redisClient.GetClient().Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, productKey(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	products := make([]domain.Product, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		price, _ := strconv.ParseFloat(fields["unit_price"], 64)
		quantity, _ := strconv.Atoi(fields["available_quantity"])
		products = append(products, domain.Product{
			ID:                ids[i],
			Name:              fields["name"],
			UnitPrice:         price,
			AvailableQuantity: quantity,
		})
	}
	return products, nil
}

// ReserveStock 执行 Lua 条件扣减。脚本先检查所有行，
// 任何一行不足时返回不足行的下标列表且不做任何扣减。
func (a *InventoryRedisAdapter) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	keys := make([]string, 0, len(reservations))
	args := make([]interface{}, 0, len(reservations))
	for _, res := range reservations {
		keys = append(keys, productKey(res.ProductID))
		args = append(args, res.Quantity)
	}

	result, err := a.redisClient.RunScript(ctx, reserveScriptName, keys, args...)
	if err != nil {
		return fmt.Errorf("reserve adapter failed to run script: %w", err)
	}

	indices, ok := result.([]interface{})
	if !ok {
		return fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	if len(indices) == 0 {
		return nil
	}

	shortages := make([]domain.StockShortage, 0, len(indices))
	for _, raw := range indices {
		idx, ok := raw.(int64)
		if !ok || idx < 1 || int(idx) > len(reservations) {
			return fmt.Errorf("unexpected index from Lua script: %v", raw)
		}
		res := reservations[idx-1]
		shortages = append(shortages, domain.StockShortage{
			ProductID: res.ProductID,
			Available: a.currentAvailability(ctx, res.ProductID),
		})
	}
	return &domain.InsufficientStockError{Shortages: shortages}
}

func (a *InventoryRedisAdapter) currentAvailability(ctx context.Context, productID string) int {
	val, err := a.redisClient.GetClient().HGet(ctx, productKey(productID), "available_quantity").Result()
	if err != nil {
		return 0
	}
	quantity, _ := strconv.Atoi(val)
	return quantity
}

// PrepareProduct (测试和管理用) 初始化一个商品的库存数据。
func (a *InventoryRedisAdapter) PrepareProduct(ctx context.Context, product domain.Product) error {
	pipe := a.redisClient.GetClient().Pipeline()
	pipe.HSet(ctx, productKey(product.ID), map[string]interface{}{
		"name":               product.Name,
		"unit_price":         strconv.FormatFloat(product.UnitPrice, 'f', 2, 64),
		"available_quantity": product.AvailableQuantity,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare product %s: %w", product.ID, err)
	}
	return nil
}

var reserveStockScript = `
-- KEYS[i]: 商品 hash 的 Key, 例如: product:{p1}
-- ARGV[i]: 对应的扣减数量

-- 1. 先检查所有行，收集库存不足的下标
local bad = {}
for i = 1, #KEYS do
    local stock = tonumber(redis.call('hget', KEYS[i], 'available_quantity'))
    local want = tonumber(ARGV[i])
    if not stock or stock <= want then
        table.insert(bad, i)
    end
end

-- 2. 任何一行不足则整体失败，不做任何扣减
if #bad > 0 then
    return bad
end

-- 3. 全部充足，逐行扣减
for i = 1, #KEYS do
    redis.call('hincrby', KEYS[i], 'available_quantity', -tonumber(ARGV[i]))
end
return {}
`
