package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"storefront/internal/service/order/domain"
)

// GormCustomerRepository 是 CustomerRepository 的 GORM 实现。
type GormCustomerRepository struct {
	db *gorm.DB
}

func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID 根据 id 查找客户。
func (r *GormCustomerRepository) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	var model CustomerModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return toDomainCustomer(&model), nil
}
