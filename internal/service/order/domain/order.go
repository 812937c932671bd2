package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order 是订单聚合的根实体，和它的订单行一起原子地创建。
// 创建之后本核心不再修改它。
type Order struct {
	ID         string
	CustomerID string
	Lines      []OrderLine
	Status     Status
	CreatedAt  time.Time
}

// OrderLine 是持久化的订单行。UnitPrice 是下单瞬间的价格快照，
// 商品后续调价不会影响已创建的订单。
type OrderLine struct {
	OrderID   string
	ProductID string
	UnitPrice float64
	Quantity  int
}

// OrderLineRequest 是请求中的一行，只在校验阶段存在，不落库。
type OrderLineRequest struct {
	ProductID string
	Quantity  int
}

// Status 是订单的生命周期状态。
type Status string

const (
	StatusPlaced Status = "PLACED"
)

// NewOrder 用校验通过的价格快照行组装一个新订单。
func NewOrder(customerID string, lines []OrderLine) (*Order, error) {
	if customerID == "" {
		return nil, ErrCustomerNotFound
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	id := uuid.NewString()
	for i := range lines {
		lines[i].OrderID = id
	}

	return &Order{
		ID:         id,
		CustomerID: customerID,
		Lines:      lines,
		Status:     StatusPlaced,
		CreatedAt:  time.Now(),
	}, nil
}

// TotalAmount 返回订单行按快照价格计算的总金额。
func (o *Order) TotalAmount() float64 {
	var total float64
	for _, line := range o.Lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// AggregateLineRequests 合并同一商品的重复行：数量相加，保持首次出现的顺序。
// 同一商品在请求中出现多次时必须按合计数量校验库存，
// 否则两行各自不超库存、合计却超了的情况会被漏判。
func AggregateLineRequests(lines []OrderLineRequest) []OrderLineRequest {
	merged := make([]OrderLineRequest, 0, len(lines))
	index := make(map[string]int, len(lines))

	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
