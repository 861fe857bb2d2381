package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/obs"
)

// changeNotifier publishes change events after successful writes. A failed
// publish is logged and counted; it never alters the HTTP response.
type changeNotifier struct {
	pub     events.ProductPublisher
	logger  *slog.Logger
	metrics *obs.Metrics
	timeout time.Duration
}

func (n changeNotifier) notify(r *http.Request, c events.Change) {
	if n.pub == nil {
		return
	}
	c.CorrelationID = middleware.GetReqID(r.Context())

	timeout := n.timeout
	if timeout <= 0 {
		timeout = events.PublishTimeout
	}
	// Survives client disconnect, still bounded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
	defer cancel()

	err := n.pub.Publish(ctx, c)
	if n.metrics != nil {
		n.metrics.ObservePublish(c.Kind.RoutingKey(), err)
	}
	if err != nil {
		n.logger.Warn("product_event_publish_failed",
			"event", c.Kind.EventName(),
			"backend", c.Backend,
			"product_id", c.ProductID,
			"request_id", c.CorrelationID,
			"error", err,
		)
	}
}
