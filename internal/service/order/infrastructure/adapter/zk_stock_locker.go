package adapter

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/pkg/logger"
	"storefront/internal/zookeeper"
)

// ZkStockLocker 是 port.StockLocker 的 ZooKeeper 实现。
// 商品 id 先排序再逐个加锁，保证两个并发订单以相同顺序竞争，
// 不会互相死锁。
type ZkStockLocker struct {
	conn *zookeeper.Conn
}

func NewZkStockLocker(conn *zookeeper.Conn) *ZkStockLocker {
	return &ZkStockLocker{conn: conn}
}

func (z *ZkStockLocker) Acquire(ctx context.Context, productIDs []string) (func(), error) {
	ids := make([]string, len(productIDs))
	copy(ids, productIDs)
	sort.Strings(ids)

	held := make([]*zookeeper.StockLock, 0, len(ids))
	release := func() {
		// 按加锁的逆序释放
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to release stock lock")
			}
		}
	}

	for _, id := range ids {
		lock, err := zookeeper.NewStockLock(z.conn, id)
		if err != nil {
			release()
			return nil, fmt.Errorf("create stock lock for %s: %w", id, err)
		}
		if err := lock.Lock(); err != nil {
			release()
			return nil, fmt.Errorf("acquire stock lock for %s: %w", id, err)
		}
		held = append(held, lock)
	}
	return release, nil
}
