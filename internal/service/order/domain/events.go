package domain

import "time"

// OrderPlaced 在订单创建且库存扣减成功后发布。
type OrderPlaced struct {
	OrderID     string       `json:"order_id"`
	CustomerID  string       `json:"customer_id"`
	Lines       []PlacedLine `json:"lines"`
	TotalAmount float64      `json:"total_amount"`
	PlacedAt    time.Time    `json:"placed_at"`
}

// PlacedLine 是事件中的订单行视图。
type PlacedLine struct {
	ProductID string  `json:"product_id"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// NewOrderPlaced 从已持久化的订单构造事件。
func NewOrderPlaced(order *Order) *OrderPlaced {
	lines := make([]PlacedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, PlacedLine{
			ProductID: line.ProductID,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return &OrderPlaced{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Lines:       lines,
		TotalAmount: order.TotalAmount(),
		PlacedAt:    order.CreatedAt,
	}
}
