package port

import (
	"context"
	"storefront/internal/service/order/domain"
)

// EventPublisher 把订单事件发布到消息系统。
// 发布失败不会导致准入流程回滚，由调用方决定如何降级。
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error
}
