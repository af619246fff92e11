package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_OfType(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.Publish(ctx, Event{Type: EventOrderCreated, OrderID: "a"})
	r.Publish(ctx, Event{Type: EventOrderStatusChanged, OrderID: "a"})
	r.Publish(ctx, Event{Type: EventOrderCreated, OrderID: "b"})

	created := r.OfType(EventOrderCreated)
	require.Len(t, created, 2)
	assert.Equal(t, "b", created[1].OrderID)
	assert.Len(t, r.Events(), 3)
	assert.Empty(t, r.OfType(EventOrderReady))
}

func TestLogNotifier_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	n.Publish(context.Background(), Event{
		Type:        EventOrderReady,
		Audiences:   []Audience{AudienceService},
		OrderID:     "order-1",
		OrderNumber: "202601010001",
		Status:      "ready",
		OccurredAt:  time.Now(),
	})

	out := buf.String()
	assert.Contains(t, out, `"type":"order.ready"`)
	assert.Contains(t, out, `"audiences":["service"]`)
	assert.Contains(t, out, `"order_number":"202601010001"`)
}
