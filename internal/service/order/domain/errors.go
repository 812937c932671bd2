package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCustomerNotFound 客户 id 无法解析。
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrNoProductsFound 请求中的商品 id 一个都解析不到。
	ErrNoProductsFound = errors.New("could not find any products with the given ids")

	// ErrOrderNotFound 订单 id 无法解析。
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyOrder 请求中没有任何订单行。
	ErrEmptyOrder = errors.New("order must contain at least one line")
)

// ProductsNotFoundError 表示请求中有部分商品不存在，Missing 列出全部缺失的 id。
type ProductsNotFoundError struct {
	Missing []string
}

func (e *ProductsNotFoundError) Error() string {
	return fmt.Sprintf("could not find products: %s", strings.Join(e.Missing, ", "))
}

// StockShortage 描述一个库存不足的商品及其当前可用量，供调用方诊断。
type StockShortage struct {
	ProductID string
	Available int
}

// InsufficientStockError 表示一个或多个商品库存不足（可用量 <= 请求量）。
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (available %d)", s.ProductID, s.Available))
	}
	return fmt.Sprintf("the products below do not have enough stock: %s", strings.Join(parts, ", "))
}

// ReservationCommitError 表示订单已经落库但库存扣减没有成功，
// 并且补偿动作（删除订单）也失败了。这不是普通的校验拒绝，
// 而是一个一致性缺口，需要对账任务或人工介入处理。
type ReservationCommitError struct {
	OrderID string
	Cause   error
}

func (e *ReservationCommitError) Error() string {
	return fmt.Sprintf("order %s was persisted but stock reservation could not be applied: %v", e.OrderID, e.Cause)
}

func (e *ReservationCommitError) Unwrap() error {
	return e.Cause
}
