// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/stock_locks" // 所有库存锁的根节点

	// 等待前驱节点释放的上限，防止死等
	defaultWaitTimeout = 30 * time.Second
)

// StockLock 是一个基于临时顺序节点的分布式锁，
// 资源粒度是单个商品 id。
type StockLock struct {
	conn     *Conn
	path     string // 锁的父路径，例如 /stock_locks/p1
	lockNode string // 成功获取锁后自己创建的节点路径
}

// NewStockLock 创建一个商品粒度的分布式锁实例，并确保锁路径存在。
func NewStockLock(conn *Conn, productID string) (*StockLock, error) {
	for _, path := range []string{lockRoot, lockRoot + "/" + productID} {
		if _, _, err := conn.Exists(path); err != nil {
			if _, createErr := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); createErr != nil && createErr != zk.ErrNodeExists {
				return nil, fmt.Errorf("failed to create lock path %s: %w", path, createErr)
			}
		}
	}
	return &StockLock{
		conn: conn,
		path: lockRoot + "/" + productID,
	}, nil
}

// Lock 尝试获取锁，获取不到则等待前驱节点释放。
func (l *StockLock) Lock() error {
	// 1. 创建临时顺序节点 /stock_locks/<productID>/lock-
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 列出所有竞争者并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点则拿到锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 否则监听前一个节点的删除事件
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find own node among children, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前驱节点刚好被删除，重新竞争
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(defaultWaitTimeout):
			// 超时放弃，并清理自己的节点避免阻塞后来者
			_ = l.conn.Delete(l.lockNode, -1)
			l.lockNode = ""
			return errors.New("timeout waiting for stock lock")
		}
	}
}

// Unlock 释放锁。
func (l *StockLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
