package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"opsportal/src/model"
)

// OrderSummary is the trimmed view of a new order carried inside a burst.
type OrderSummary struct {
	ID           uint    `json:"id"`
	OrderNumber  string  `json:"order_number"`
	CustomerName string  `json:"customer_name"`
	TotalAmount  float64 `json:"total_amount"`
	Status       string  `json:"status"`
}

// Burst is the single notification emitted per sync cycle that imported
// new orders, no matter how many arrived.
type Burst struct {
	BurstID   string         `json:"burst_id"`
	Type      string         `json:"type"`
	Count     int            `json:"count"`
	Sample    []OrderSummary `json:"sample,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type broadcaster interface {
	Broadcast(payload []byte)
}

// Dispatcher turns import results into websocket bursts.
type Dispatcher struct {
	hub broadcaster
}

func NewDispatcher(hub broadcaster) *Dispatcher {
	return &Dispatcher{hub: hub}
}

// NotifyNewOrders publishes one aggregated burst. A cycle with zero new
// orders produces nothing.
func (d *Dispatcher) NotifyNewOrders(count int, sample []model.Order) {
	if count <= 0 {
		return
	}

	burst := Burst{
		BurstID:   uuid.NewString(),
		Type:      "new_orders",
		Count:     count,
		CreatedAt: time.Now(),
	}
	for _, order := range sample {
		burst.Sample = append(burst.Sample, OrderSummary{
			ID:           order.ID,
			OrderNumber:  order.OrderNumber,
			CustomerName: order.CustomerName,
			TotalAmount:  order.TotalAmount,
			Status:       order.Status,
		})
	}

	payload, err := json.Marshal(burst)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal notification burst")
		return
	}

	logger.WithFields(map[string]interface{}{
		"notify":   "Dispatcher",
		"burst_id": burst.BurstID,
		"count":    count,
	}).Info("Broadcasting new order burst")

	d.hub.Broadcast(payload)
}
