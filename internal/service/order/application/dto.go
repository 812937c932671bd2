package application

import (
	"time"

	"storefront/internal/service/order/domain"
)

// PlaceOrderRequest 是接口层传入的下单请求。
type PlaceOrderRequest struct {
	CustomerID string           `json:"customer_id"`
	Items      []PlaceOrderItem `json:"items"`
}

// PlaceOrderItem 是请求中的一个 (商品, 数量) 对。
type PlaceOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ToLineRequests 将请求项转换为领域层的订单行请求。
func (r *PlaceOrderRequest) ToLineRequests() []domain.OrderLineRequest {
	lines := make([]domain.OrderLineRequest, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, domain.OrderLineRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// OrderView 是返回给接口层的订单视图。
type OrderView struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Lines       []OrderLineView `json:"lines"`
	TotalAmount float64         `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderLineView 是订单行的视图。
type OrderLineView struct {
	ProductID string  `json:"product_id"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// NewOrderView 从领域实体构造视图。
func NewOrderView(order *domain.Order) *OrderView {
	lines := make([]OrderLineView, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderLineView{
			ProductID: line.ProductID,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return &OrderView{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Lines:       lines,
		TotalAmount: order.TotalAmount(),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
	}
}
