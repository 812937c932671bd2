package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// OrderAdmissionService 实现订单准入流程：校验请求、按当前价格生成
// 快照订单、持久化、再扣减库存。四个阶段严格顺序执行，
// 任何一个阶段失败整个请求失败，不留下半成品订单。
type OrderAdmissionService struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	publisher port.EventPublisher
	locker    port.StockLocker
	tracer    trace.Tracer
}

// NewOrderAdmissionService 创建准入服务。publisher 和 locker 允许为 nil：
// 没有 publisher 时不发事件；没有 locker 时依赖仓储层的条件扣减防超卖。
func NewOrderAdmissionService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	publisher port.EventPublisher,
	locker port.StockLocker,
	tracer trace.Tracer,
) *OrderAdmissionService {
	return &OrderAdmissionService{
		customers: customers,
		products:  products,
		orders:    orders,
		publisher: publisher,
		locker:    locker,
		tracer:    tracer,
	}
}

// AdmitOrder 是订单准入的唯一入口。
//
// 重复的商品 id 先按商品合并数量，再统一校验和计价；库存校验阶段
// 只负责给出完整的错误清单，真正的防超卖由 ReserveStock 的
// 条件扣减保证。订单落库后扣减失败时删除订单作为补偿，
// 补偿也失败则上报 ReservationCommitError。
func (s *OrderAdmissionService) AdmitOrder(ctx context.Context, req *PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.AdmitOrder")
	defer span.End()

	lines := domain.AggregateLineRequests(req.ToLineRequests())
	if len(lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.line_count", len(lines)),
	)

	// 阶段 1: 客户必须存在
	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer resolution failed")
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, ids)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock lock acquisition failed")
			return nil, err
		}
		defer release()
	}

	// 阶段 2: 批量解析商品并校验库存
	resolved, err := s.resolveProducts(ctx, lines, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product validation failed")
		return nil, err
	}

	// 阶段 3: 按当前价格生成快照订单并持久化
	orderLines := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		product := resolved[line.ProductID]
		orderLines = append(orderLines, domain.OrderLine{
			ProductID: product.ID,
			UnitPrice: product.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	order, err := domain.NewOrder(customer.ID, orderLines)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order persistence failed")
		return nil, err
	}
	span.AddEvent("Order persisted.")

	// 阶段 4: 按已持久化的订单行扣减库存。
	// 用持久化结果而不是原始请求，保证扣减永远和已提交的订单一致。
	reservations := make([]domain.StockReservation, 0, len(order.Lines))
	for _, line := range order.Lines {
		reservations = append(reservations, domain.StockReservation{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	if err := s.products.ReserveStock(ctx, reservations); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock reservation failed")

		// 补偿：删除刚创建的订单，保证全有或全无
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			logger.Ctx(ctx).Error().Err(delErr).
				Str("order_id", order.ID).
				Msg("CRITICAL: failed to delete order after reservation failure, manual intervention required")
			return nil, &domain.ReservationCommitError{OrderID: order.ID, Cause: err}
		}
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_id", order.ID).
			Msg("Stock reservation failed, order rolled back")
		return nil, err
	}
	span.AddEvent("Stock reserved for all order lines.")

	// 事件发布是尽力而为，失败只记录不回滚
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, domain.NewOrderPlaced(order)); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Msg("Failed to publish order placed event")
		}
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("customer_id", order.CustomerID).
		Int("lines", len(order.Lines)).
		Msg("Order admitted")
	return order, nil
}

// GetOrder 查询一个已持久化的订单。
func (s *OrderAdmissionService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	return s.orders.FindByID(ctx, id)
}

// resolveProducts 执行准入流程的阶段 2：批量查询商品、
// 校验所有 id 都存在、再按合并后的数量做库存预检。
// 返回按商品 id 索引的快照。
func (s *OrderAdmissionService) resolveProducts(ctx context.Context, lines []domain.OrderLineRequest, ids []string) (map[string]domain.Product, error) {
	products, err := s.products.FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrNoProductsFound
	}

	resolved := make(map[string]domain.Product, len(products))
	for _, p := range products {
		resolved[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ProductsNotFoundError{Missing: missing}
	}

	var shortages []domain.StockShortage
	for _, line := range lines {
		product := resolved[line.ProductID]
		if !product.HasStockFor(line.Quantity) {
			shortages = append(shortages, domain.StockShortage{
				ProductID: product.ID,
				Available: product.AvailableQuantity,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Shortages: shortages}
	}

	return resolved, nil
}
