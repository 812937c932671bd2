package infrastructure

import "storefront/internal/service/order/domain"

// --- 数据库模型与领域模型的转换 ---

func toDomainCustomer(model *CustomerModel) *domain.Customer {
	return &domain.Customer{
		ID:        model.ID,
		Name:      model.Name,
		Email:     model.Email,
		CreatedAt: model.CreatedAt,
	}
}

func toDomainProduct(model *ProductModel) domain.Product {
	return domain.Product{
		ID:                model.ID,
		Name:              model.Name,
		UnitPrice:         model.UnitPrice,
		AvailableQuantity: model.AvailableQuantity,
	}
}

func toDomainOrder(model *OrderModel) *domain.Order {
	lines := make([]domain.OrderLine, 0, len(model.Lines))
	for _, l := range model.Lines {
		lines = append(lines, domain.OrderLine{
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return &domain.Order{
		ID:         model.ID,
		CustomerID: model.CustomerID,
		Lines:      lines,
		Status:     domain.Status(model.Status),
		CreatedAt:  model.CreatedAt,
	}
}

func toOrderModel(order *domain.Order) *OrderModel {
	lines := make([]OrderLineModel, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, OrderLineModel{
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return &OrderModel{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
		Lines:      lines,
	}
}
