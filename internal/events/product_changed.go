package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ChangeKind int

const (
	ProductCreated ChangeKind = iota + 1
	ProductUpdated
	ProductDeleted
)

func (k ChangeKind) EventName() string {
	switch k {
	case ProductCreated:
		return "ProductCreated"
	case ProductUpdated:
		return "ProductUpdated"
	case ProductDeleted:
		return "ProductDeleted"
	default:
		return "Unknown"
	}
}

func (k ChangeKind) RoutingKey() string {
	switch k {
	case ProductCreated:
		return ProductCreatedRoutingKey
	case ProductUpdated:
		return ProductUpdatedRoutingKey
	case ProductDeleted:
		return ProductDeletedRoutingKey
	default:
		return ""
	}
}

// Change describes one successful mutation in either store.
type Change struct {
	Kind          ChangeKind
	Backend       string // "nosql" or "sql"
	ProductID     string
	Product       any
	CorrelationID string
}

// ProductChangedPayload is the payload of every product change event.
// Product is the snapshot returned to the HTTP caller.
type ProductChangedPayload struct {
	Backend   string          `json:"backend"`
	ProductID string          `json:"productId"`
	Product   json.RawMessage `json:"product"`
}

func newProductChangedEvent(c Change, producer string, occurredAt time.Time) (EventEnvelope, error) {
	if c.Kind.RoutingKey() == "" {
		return EventEnvelope{}, fmt.Errorf("unknown change kind %d", c.Kind)
	}
	if c.ProductID == "" {
		return EventEnvelope{}, fmt.Errorf("missing productId")
	}

	snapshot, err := json.Marshal(c.Product)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal product snapshot: %w", err)
	}
	payload, err := json.Marshal(ProductChangedPayload{
		Backend:   c.Backend,
		ProductID: c.ProductID,
		Product:   snapshot,
	})
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	return EventEnvelope{
		EventName:     c.Kind.EventName(),
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: c.CorrelationID,
		Producer:      producer,
		PartitionKey:  c.Backend + ":" + c.ProductID,
		OccurredAt:    occurredAt,
		Payload:       payload,
	}, nil
}
