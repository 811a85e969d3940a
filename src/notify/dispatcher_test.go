package notify

import (
	"encoding/json"
	"testing"

	"opsportal/src/model"
)

type captureHub struct {
	payloads [][]byte
}

func (c *captureHub) Broadcast(payload []byte) {
	c.payloads = append(c.payloads, payload)
}

func TestNotifyNewOrdersEmitsSingleBurst(t *testing.T) {
	hub := &captureHub{}
	d := NewDispatcher(hub)

	d.NotifyNewOrders(7, []model.Order{
		{ID: 1, OrderNumber: "WC-501", CustomerName: "Ana Souza", TotalAmount: 44.8, Status: "processing"},
		{ID: 2, OrderNumber: "WC-502", CustomerName: "Bruno Lima", TotalAmount: 19.9, Status: "pending"},
	})

	if len(hub.payloads) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.payloads))
	}

	var burst Burst
	if err := json.Unmarshal(hub.payloads[0], &burst); err != nil {
		t.Fatalf("unmarshal burst: %v", err)
	}
	if burst.BurstID == "" {
		t.Fatal("burst has no ID")
	}
	if burst.Type != "new_orders" {
		t.Fatalf("type = %q", burst.Type)
	}
	if burst.Count != 7 {
		t.Fatalf("count = %d, want 7", burst.Count)
	}
	if len(burst.Sample) != 2 || burst.Sample[0].OrderNumber != "WC-501" {
		t.Fatalf("unexpected sample: %+v", burst.Sample)
	}
}

func TestNotifyNewOrdersSkipsEmptyCycle(t *testing.T) {
	hub := &captureHub{}
	d := NewDispatcher(hub)

	d.NotifyNewOrders(0, nil)

	if len(hub.payloads) != 0 {
		t.Fatalf("broadcasts = %d, want 0 for an empty cycle", len(hub.payloads))
	}
}

func TestBurstIDsAreUnique(t *testing.T) {
	hub := &captureHub{}
	d := NewDispatcher(hub)

	d.NotifyNewOrders(1, nil)
	d.NotifyNewOrders(1, nil)

	var first, second Burst
	if err := json.Unmarshal(hub.payloads[0], &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(hub.payloads[1], &second); err != nil {
		t.Fatal(err)
	}
	if first.BurstID == second.BurstID {
		t.Fatalf("burst IDs collided: %s", first.BurstID)
	}
}
