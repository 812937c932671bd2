package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/service/order/domain"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

// --- testify mocks ---

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductRepository) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	args := m.Called(ctx, reservations)
	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// --- 内存仓储，用于验证库存守恒和并发防超卖 ---

// fakeInventory 在互斥锁下做条件扣减，语义等同于
// GormProductRepository 的条件 UPDATE。
type fakeInventory struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newFakeInventory(products ...domain.Product) *fakeInventory {
	m := make(map[string]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeInventory{products: m}
}

func (f *fakeInventory) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeInventory) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var shortages []domain.StockShortage
	for _, res := range reservations {
		p, ok := f.products[res.ProductID]
		if !ok || p.AvailableQuantity <= res.Quantity {
			shortages = append(shortages, domain.StockShortage{
				ProductID: res.ProductID,
				Available: p.AvailableQuantity,
			})
		}
	}
	if len(shortages) > 0 {
		return &domain.InsufficientStockError{Shortages: shortages}
	}
	for _, res := range reservations {
		p := f.products[res.ProductID]
		p.AvailableQuantity -= res.Quantity
		f.products[res.ProductID] = p
	}
	return nil
}

func (f *fakeInventory) available(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].AvailableQuantity
}

func (f *fakeInventory) setPrice(id string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.UnitPrice = price
	f.products[id] = p
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*domain.Order)}
}

func (f *fakeOrderStore) Create(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeOrderStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeCustomers struct {
	known map[string]bool
}

func (f *fakeCustomers) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	if f.known[id] {
		return &domain.Customer{ID: id}, nil
	}
	return nil, domain.ErrCustomerNotFound
}

// --- tests ---

func TestAdmitOrder_Scenario(t *testing.T) {
	// C1 存在; P1(price=100, qty=3), P2(price=50, qty=10)
	inventory := newFakeInventory(
		domain.Product{ID: "P1", UnitPrice: 100, AvailableQuantity: 3},
		domain.Product{ID: "P2", UnitPrice: 50, AvailableQuantity: 10},
	)
	orders := newFakeOrderStore()
	publisher := new(MockEventPublisher)
	publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)

	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory, orders, publisher, nil, testTracer)

	order, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items: []PlaceOrderItem{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "C1", order.CustomerID)
	assert.Equal(t, 100.0, order.Lines[0].UnitPrice)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.Equal(t, 50.0, order.Lines[1].UnitPrice)
	assert.Equal(t, 1, order.Lines[1].Quantity)
	assert.Equal(t, 250.0, order.TotalAmount())

	// I5: 库存恰好减去已提交的数量
	assert.Equal(t, 1, inventory.available("P1"))
	assert.Equal(t, 9, inventory.available("P2"))
	assert.Equal(t, 1, orders.count())
	publisher.AssertExpectations(t)
}

func TestAdmitOrder_CustomerNotFound(t *testing.T) {
	customers := new(MockCustomerRepository)
	products := new(MockProductRepository)
	orders := new(MockOrderRepository)
	customers.On("FindByID", mock.Anything, "ghost").Return(nil, domain.ErrCustomerNotFound)

	service := NewOrderAdmissionService(customers, products, orders, nil, nil, testTracer)

	order, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "ghost",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 1}},
	})

	assert.Nil(t, order)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	// P1: 没有任何订单或库存副作用
	products.AssertNotCalled(t, "FindAllByID", mock.Anything, mock.Anything)
	products.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdmitOrder_NoProductsFound(t *testing.T) {
	customers := new(MockCustomerRepository)
	products := new(MockProductRepository)
	orders := new(MockOrderRepository)
	customers.On("FindByID", mock.Anything, "C1").Return(&domain.Customer{ID: "C1"}, nil)
	products.On("FindAllByID", mock.Anything, []string{"X1", "X2"}).Return([]domain.Product{}, nil)

	service := NewOrderAdmissionService(customers, products, orders, nil, nil, testTracer)

	_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items: []PlaceOrderItem{
			{ProductID: "X1", Quantity: 1},
			{ProductID: "X2", Quantity: 1},
		},
	})

	assert.ErrorIs(t, err, domain.ErrNoProductsFound)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdmitOrder_ProductsNotFound_NamesMissingSubset(t *testing.T) {
	customers := new(MockCustomerRepository)
	products := new(MockProductRepository)
	orders := new(MockOrderRepository)
	customers.On("FindByID", mock.Anything, "C1").Return(&domain.Customer{ID: "C1"}, nil)
	products.On("FindAllByID", mock.Anything, []string{"P1", "P9"}).Return([]domain.Product{
		{ID: "P1", UnitPrice: 100, AvailableQuantity: 3},
	}, nil)

	service := NewOrderAdmissionService(customers, products, orders, nil, nil, testTracer)

	_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items: []PlaceOrderItem{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "P9", Quantity: 1},
		},
	})

	var notFound *domain.ProductsNotFoundError
	require.ErrorAs(t, err, &notFound)
	// P2: 缺失列表精确到没解析出来的那个子集
	assert.Equal(t, []string{"P9"}, notFound.Missing)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	products.AssertNotCalled(t, "ReserveStock", mock.Anything, mock.Anything)
}

func TestAdmitOrder_InsufficientStock_Boundary(t *testing.T) {
	// P3: 请求数量等于可用库存时同样拒绝 (<=)
	inventory := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 100, AvailableQuantity: 3})
	orders := newFakeOrderStore()
	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory, orders, nil, nil, testTracer)

	_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 3}},
	})

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, "P1", insufficient.Shortages[0].ProductID)
	assert.Equal(t, 3, insufficient.Shortages[0].Available)
	assert.Equal(t, 3, inventory.available("P1"))
	assert.Equal(t, 0, orders.count())

	// 边界的另一侧：请求 available-1 成功
	_, err = service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inventory.available("P1"))
}

func TestAdmitOrder_PriceSnapshot(t *testing.T) {
	inventory := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 100, AvailableQuantity: 10})
	orders := newFakeOrderStore()
	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory, orders, nil, nil, testTracer)

	order, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 2}},
	})
	require.NoError(t, err)

	// P4: 商品后续调价不影响已创建订单的快照价格
	inventory.setPrice("P1", 999)

	stored, err := orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Lines[0].UnitPrice)
}

func TestAdmitOrder_AggregatesDuplicateLines(t *testing.T) {
	// 同一商品出现两次，两行各自都不超库存、合计却超了，必须被拒绝
	inventory := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 10, AvailableQuantity: 4})
	orders := newFakeOrderStore()
	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory, orders, nil, nil, testTracer)

	_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items: []PlaceOrderItem{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P1", Quantity: 2},
		},
	})

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4, inventory.available("P1"))

	// 合计在库存之内时，合并为一行下单
	inventory2 := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 10, AvailableQuantity: 5})
	service2 := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory2, newFakeOrderStore(), nil, nil, testTracer)

	order, err := service2.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items: []PlaceOrderItem{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P1", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 4, order.Lines[0].Quantity)
	assert.Equal(t, 1, inventory2.available("P1"))
}

func TestAdmitOrder_ReservationFailureRollsBackOrder(t *testing.T) {
	customers := new(MockCustomerRepository)
	products := new(MockProductRepository)
	orders := new(MockOrderRepository)
	customers.On("FindByID", mock.Anything, "C1").Return(&domain.Customer{ID: "C1"}, nil)
	products.On("FindAllByID", mock.Anything, []string{"P1"}).Return([]domain.Product{
		{ID: "P1", UnitPrice: 100, AvailableQuantity: 5},
	}, nil)
	// 校验通过后，扣减在提交点被并发订单抢先
	reserveErr := &domain.InsufficientStockError{
		Shortages: []domain.StockShortage{{ProductID: "P1", Available: 1}},
	}
	products.On("ReserveStock", mock.Anything, mock.Anything).Return(reserveErr)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	orders.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	service := NewOrderAdmissionService(customers, products, orders, nil, nil, testTracer)

	order, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 2}},
	})

	assert.Nil(t, order)
	var insufficient *domain.InsufficientStockError
	assert.ErrorAs(t, err, &insufficient)
	orders.AssertCalled(t, "Delete", mock.Anything, mock.AnythingOfType("string"))
}

func TestAdmitOrder_CompensationFailureIsSurfaced(t *testing.T) {
	customers := new(MockCustomerRepository)
	products := new(MockProductRepository)
	orders := new(MockOrderRepository)
	customers.On("FindByID", mock.Anything, "C1").Return(&domain.Customer{ID: "C1"}, nil)
	products.On("FindAllByID", mock.Anything, []string{"P1"}).Return([]domain.Product{
		{ID: "P1", UnitPrice: 100, AvailableQuantity: 5},
	}, nil)
	products.On("ReserveStock", mock.Anything, mock.Anything).Return(errors.New("store unavailable"))
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	orders.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(errors.New("delete failed"))

	service := NewOrderAdmissionService(customers, products, orders, nil, nil, testTracer)

	_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 2}},
	})

	// 订单已落库但既没扣到库存也没删掉订单：必须以更高严重级别上报
	var commitErr *domain.ReservationCommitError
	require.ErrorAs(t, err, &commitErr)
	assert.NotEmpty(t, commitErr.OrderID)
}

func TestAdmitOrder_PublisherFailureDoesNotFailAdmission(t *testing.T) {
	inventory := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 100, AvailableQuantity: 5})
	publisher := new(MockEventPublisher)
	publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true}},
		inventory, newFakeOrderStore(), publisher, nil, testTracer)

	order, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: "C1",
		Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 2}},
	})

	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 3, inventory.available("P1"))
}

func TestAdmitOrder_Concurrent_NoOversell(t *testing.T) {
	// P6: 库存 10，两个并发订单各要 6，最多一个成功
	inventory := newFakeInventory(domain.Product{ID: "P1", UnitPrice: 100, AvailableQuantity: 10})
	orders := newFakeOrderStore()
	service := NewOrderAdmissionService(&fakeCustomers{known: map[string]bool{"C1": true, "C2": true}},
		inventory, orders, nil, nil, testTracer)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, customer := range []string{"C1", "C2"} {
		wg.Add(1)
		go func(customerID string) {
			defer wg.Done()
			_, err := service.AdmitOrder(context.Background(), &PlaceOrderRequest{
				CustomerID: customerID,
				Items:      []PlaceOrderItem{{ProductID: "P1", Quantity: 6}},
			})
			results <- err
		}(customer)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		rejected++
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	// 总提交量不超过初始库存
	assert.Equal(t, 4, inventory.available("P1"))
	assert.Equal(t, 1, orders.count())
}

func TestGetOrder_NotFound(t *testing.T) {
	service := NewOrderAdmissionService(&fakeCustomers{}, newFakeInventory(), newFakeOrderStore(),
		nil, nil, testTracer)

	_, err := service.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
