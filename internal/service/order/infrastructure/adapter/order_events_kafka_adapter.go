package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain"
)

// OrderEventsKafkaAdapter 把订单事件发布到 Kafka。
// 消息按客户 id 分区，同一客户的事件保持顺序。
type OrderEventsKafkaAdapter struct {
	writer *kafka.Writer
}

func NewOrderEventsKafkaAdapter(writer *kafka.Writer) *OrderEventsKafkaAdapter {
	return &OrderEventsKafkaAdapter{writer: writer}
}

func (a *OrderEventsKafkaAdapter) PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order placed event")
	}
	if err := mq.ProduceMessage(ctx, a.writer, []byte(event.CustomerID), payload); err != nil {
		return errors.Wrap(err, "produce order placed event")
	}
	return nil
}
