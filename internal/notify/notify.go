package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Audience string

const (
	AudienceKitchen Audience = "kitchen"
	AudienceService Audience = "service"
	AudienceStock   Audience = "stock"
	AudienceManager Audience = "manager"
	AudienceAll     Audience = "all"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderReady         EventType = "order.ready"
	EventOrderCompleted     EventType = "order.completed"
	EventOrderFocusUpdated  EventType = "order.focus_updated"
)

type Event struct {
	Type        EventType
	Audiences   []Audience
	OrderID     string
	OrderNumber string
	Status      string
	OccurredAt  time.Time
	Data        map[string]interface{}
}

// Notifier broadcasts order lifecycle events. Publish never reports
// failure: delivery is best effort and must not affect the caller.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

type logNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Publish(ctx context.Context, event Event) {
	audiences := make([]string, len(event.Audiences))
	for i, a := range event.Audiences {
		audiences[i] = string(a)
	}

	n.log.InfoContext(ctx, "order event",
		"type", event.Type,
		"audiences", audiences,
		"order_id", event.OrderID,
		"order_number", event.OrderNumber,
		"status", event.Status,
	)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
