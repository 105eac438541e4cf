package service

import (
	"context"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Dispatcher struct {
	log      *zap.Logger
	registry *webhookdomain.Registry
	queue    webhookdomain.Queue
	metrics  *metrics.Metrics
}

type DispatcherParam struct {
	fx.In

	Log      *zap.Logger
	Registry *webhookdomain.Registry
	Queue    webhookdomain.Queue
	Metrics  *metrics.Metrics
}

func NewDispatcher(p DispatcherParam) webhookdomain.Dispatcher {
	return &Dispatcher{
		log:      p.Log.Named("webhook.dispatcher"),
		registry: p.Registry,
		queue:    p.Queue,
		metrics:  p.Metrics,
	}
}

// Dispatch routes a verified delivery onto the queue. A topic nobody
// registered for is logged and counted but not an error: the platform
// keeps sending topics we never subscribed to, and retrying those
// would never help.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery webhookdomain.Delivery) error {
	if delivery.DeliveryID == "" {
		return webhookdomain.ErrMissingDeliveryID
	}

	if _, ok := d.registry.Lookup(delivery.Topic); !ok {
		d.metrics.UnknownTopics.WithLabelValues(delivery.Topic).Inc()
		d.log.Warn("no handler for topic, acknowledging",
			zap.String("topic", delivery.Topic),
			zap.String("delivery_id", delivery.DeliveryID),
		)
		return nil
	}

	if err := d.queue.Enqueue(ctx, webhookdomain.Job{Delivery: delivery, Attempt: 1}); err != nil {
		return err
	}

	d.metrics.JobsEnqueued.WithLabelValues(delivery.Topic).Inc()
	d.log.Debug("delivery enqueued",
		zap.String("topic", delivery.Topic),
		zap.String("delivery_id", delivery.DeliveryID),
		zap.String("shop_domain", delivery.ShopDomain),
	)
	return nil
}
