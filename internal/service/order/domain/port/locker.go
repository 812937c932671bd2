package port

import "context"

// StockLocker 在校验到扣减的窗口内对一组商品加互斥锁。
// 对于自身支持条件扣减的存储（MySQL、Redis Lua）这不是必须的，
// 只在库存后端无法提供原子扣减时启用。
type StockLocker interface {
	// Acquire 按给定顺序获取所有商品的锁，返回统一的释放函数。
	// 任何一把锁获取失败时整体失败，且不留下已持有的锁。
	Acquire(ctx context.Context, productIDs []string) (release func(), err error)
}
