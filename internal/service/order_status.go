package service

import (
	"context"
	"fmt"
	"strings"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/notify"

	"gorm.io/gorm"
)

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:        {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:      {model.OrderStatusPreparing, model.OrderStatusCancelled},
	model.OrderStatusPreparing:      {model.OrderStatusReady, model.OrderStatusCancelled},
	model.OrderStatusReady:          {model.OrderStatusOutForDelivery, model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusOutForDelivery: {model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusCompleted:      nil,
	model.OrderStatusCancelled:      nil,
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isTerminal(status model.OrderStatus) bool {
	return status == model.OrderStatusCompleted || status == model.OrderStatusCancelled
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, newStatus model.OrderStatus, notes, actor string) (*model.Order, error) {
	if _, known := transitions[newStatus]; !known {
		return nil, apperror.Validation("unknown order status %q", newStatus)
	}

	actor = actorOrSystem(actor)
	now := s.now()
	var (
		order *model.Order
		from  model.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}

		from = order.Status
		if !CanTransition(from, newStatus) {
			return apperror.Conflict("cannot change order %s from %s to %s", order.OrderNumber, from, newStatus)
		}

		order.Status = newStatus
		order.UpdatedBy = actor
		switch newStatus {
		case model.OrderStatusCompleted:
			if order.ActualDeliveryTime == nil {
				order.ActualDeliveryTime = &now
			}
		case model.OrderStatusPreparing:
			if order.Type == model.OrderTypeDelivery && order.EstimatedDeliveryTime == nil {
				eta := now.Add(s.pricing.EstimatedDelivery)
				order.EstimatedDeliveryTime = &eta
			}
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		entry := &model.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   newStatus,
			Note:       strings.TrimSpace(notes),
			ChangedBy:  actor,
		}
		if err := s.orderRepo.AppendHistory(ctx, tx, entry); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
		order.StatusHistory = append(order.StatusHistory, *entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status changed",
		"order_id", order.ID,
		"from", from,
		"to", newStatus,
		"actor", actor,
	)
	s.publishStatus(ctx, order, from)
	s.settleLoyalty(ctx, order, actor)

	return order, nil
}

func (s *orderServiceImpl) publishStatus(ctx context.Context, order *model.Order, from model.OrderStatus) {
	event := notify.Event{
		Type:        notify.EventOrderStatusChanged,
		Audiences:   []notify.Audience{notify.AudienceAll},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OccurredAt:  s.now(),
		Data:        map[string]interface{}{"from": from},
	}
	s.notifier.Publish(ctx, event)

	switch order.Status {
	case model.OrderStatusReady:
		event.Type = notify.EventOrderReady
		event.Audiences = []notify.Audience{notify.AudienceService}
		s.notifier.Publish(ctx, event)
	case model.OrderStatusCompleted:
		event.Type = notify.EventOrderCompleted
		event.Audiences = []notify.Audience{notify.AudienceManager}
		s.notifier.Publish(ctx, event)
	}
}

// settleLoyalty earns points when a customer order completes and gives back
// redeemed points when it is cancelled. Both are idempotent and logged on
// failure; the status change has already committed.
func (s *orderServiceImpl) settleLoyalty(ctx context.Context, order *model.Order, actor string) {
	if order.CustomerID == nil {
		return
	}

	switch order.Status {
	case model.OrderStatusCompleted:
		points, err := s.fidelity.EarnForOrder(ctx, *order.CustomerID, order.ID, order.Total)
		if err != nil {
			s.log.ErrorContext(ctx, "earn points for order", "order_id", order.ID, "error", err)
			return
		}
		if points > 0 {
			s.log.InfoContext(ctx, "points earned for order", "order_id", order.ID, "points", points)
		}
	case model.OrderStatusCancelled:
		if order.PointsRedeemed == 0 {
			return
		}
		if err := s.fidelity.RestoreRedeemedPoints(ctx, *order.CustomerID, order.ID, order.PointsRedeemed, actor); err != nil {
			s.log.ErrorContext(ctx, "restore redeemed points", "order_id", order.ID, "error", err)
		}
	}
}
