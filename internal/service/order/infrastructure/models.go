package infrastructure

import "time"

// CustomerModel 对应数据库中的 customers 表。
type CustomerModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string
	Email     string `gorm:"uniqueIndex;size:191"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CustomerModel) TableName() string {
	return "customers"
}

// ProductModel 对应数据库中的 products 表。
// AvailableQuantity 只允许通过条件 UPDATE 扣减，见 GormProductRepository。
type ProductModel struct {
	ID                string `gorm:"primaryKey;size:36"`
	Name              string
	UnitPrice         float64 `gorm:"type:decimal(10,2)"`
	AvailableQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

// OrderModel 对应数据库中的 orders 表。
type OrderModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	CustomerID string `gorm:"size:36;index"`
	Status     string `gorm:"size:32"`
	CreatedAt  time.Time
	// 关联关系：订单行随订单一起创建和删除
	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel 对应数据库中的 order_lines 表。
// UnitPrice 是下单时的价格快照，与 products 表解耦。
type OrderLineModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:36;index"`
	ProductID string `gorm:"size:36"`
	UnitPrice float64 `gorm:"type:decimal(10,2)"`
	Quantity  int
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}
