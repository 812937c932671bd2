package domain

// Product 是商品在库存视角下的只读快照。
// 可用库存的变更只能通过 ProductRepository.ReserveStock 完成，
// 订单核心自身不会修改 Product。
type Product struct {
	ID                string
	Name              string
	UnitPrice         float64
	AvailableQuantity int
}

// HasStockFor 判断当前库存能否满足请求数量。
// 边界规则：库存恰好等于请求数量时同样视为不足（<=），
// 不允许一笔订单清空库存。
func (p Product) HasStockFor(quantity int) bool {
	return p.AvailableQuantity > quantity
}
