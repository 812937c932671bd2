package domain

import "context"

// CustomerRepository 定义了客户数据的查询接口。
// 它位于领域层，由基础设施层实现。
type CustomerRepository interface {
	// FindByID 根据 id 查找客户，不存在时返回 ErrCustomerNotFound。
	FindByID(ctx context.Context, id string) (*Customer, error)
}

// StockReservation 是一次扣减请求：把 ProductID 的可用库存减去 Quantity。
type StockReservation struct {
	ProductID string
	Quantity  int
}

// ProductRepository 定义了商品查询与库存扣减的接口。
type ProductRepository interface {
	// FindAllByID 批量查询商品，不存在的 id 直接从结果中省略，
	// 结果顺序不保证。
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)

	// ReserveStock 原子地、有条件地扣减所有行的库存：
	// 任何一行可用量不大于请求量时整体失败并返回 *InsufficientStockError，
	// 不留下部分扣减。并发防超卖依赖这里的条件扣减，
	// 而不是之前的读取校验。
	ReserveStock(ctx context.Context, reservations []StockReservation) error
}

// OrderRepository 定义了订单聚合的持久化接口。
type OrderRepository interface {
	// Create 把订单连同订单行作为一个整体持久化。
	Create(ctx context.Context, order *Order) error

	// Delete 删除一个订单及其订单行，是库存扣减失败后的补偿动作。
	Delete(ctx context.Context, id string) error

	// FindByID 根据 id 查找订单，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)
}
