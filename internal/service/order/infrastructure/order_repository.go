package infrastructure

import (
	"context"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/order/domain"
)

const mysqlDuplicateEntry = 1062

// GormOrderRepository 是 OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 把订单连同订单行写入一个事务。
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return pkgerrors.Wrapf(err, "order %s already exists", order.ID)
		}
		return pkgerrors.Wrap(err, "create order")
	}
	return nil
}

// Delete 删除订单及其订单行，用于库存扣减失败后的补偿。
func (r *GormOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&OrderLineModel{}).Error; err != nil {
			return pkgerrors.Wrapf(err, "delete lines of order %s", id)
		}
		if err := tx.Where("id = ?", id).Delete(&OrderModel{}).Error; err != nil {
			return pkgerrors.Wrapf(err, "delete order %s", id)
		}
		return nil
	})
}

// FindByID 根据 id 查找订单，预加载订单行。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}
