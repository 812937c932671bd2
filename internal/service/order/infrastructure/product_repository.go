package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/order/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现。
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindAllByID 批量查询商品，不存在的 id 从结果中省略。
func (r *GormProductRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find products by ids")
	}

	products := make([]domain.Product, 0, len(models))
	for i := range models {
		products = append(products, toDomainProduct(&models[i]))
	}
	return products, nil
}

// ReserveStock 在一个事务里对每行执行条件扣减：
//
//	UPDATE products SET available_quantity = available_quantity - ?
//	WHERE id = ? AND available_quantity > ?
//
// RowsAffected 为 0 说明该行在读取校验之后被并发订单抢走了库存
// （check-then-act 窗口），此时收集所有不足的商品并整体回滚。
// 两个并发订单对同一商品的条件 UPDATE 会在行锁上串行化，
// 所以最多只有一个能通过，库存永远不会被扣成负数。
func (r *GormProductRepository) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shortages []domain.StockShortage

		for _, res := range reservations {
			result := tx.Model(&ProductModel{}).
				Where("id = ? AND available_quantity > ?", res.ProductID, res.Quantity).
				UpdateColumn("available_quantity", gorm.Expr("available_quantity - ?", res.Quantity))
			if result.Error != nil {
				return errors.Wrapf(result.Error, "decrement stock of %s", res.ProductID)
			}
			if result.RowsAffected == 0 {
				shortages = append(shortages, domain.StockShortage{
					ProductID: res.ProductID,
					Available: r.currentAvailability(tx, res.ProductID),
				})
			}
		}

		if len(shortages) > 0 {
			// 返回错误让事务回滚，已执行的扣减全部撤销
			return &domain.InsufficientStockError{Shortages: shortages}
		}
		return nil
	})
}

// currentAvailability 读取商品当前可用量用于错误载荷，商品不存在时按 0 处理。
func (r *GormProductRepository) currentAvailability(tx *gorm.DB, productID string) int {
	var model ProductModel
	if err := tx.Select("available_quantity").Where("id = ?", productID).Take(&model).Error; err != nil {
		return 0
	}
	return model.AvailableQuantity
}
