package domain

import "time"

// Customer 是下单主体。订单核心只关心客户是否存在，
// 其余资料（地址、联系方式等）由客户侧的 CRUD 服务维护。
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
