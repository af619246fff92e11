package service

import (
	"context"
	"fmt"
	"strings"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// paidAmount is what the customer has effectively paid: every payment that
// did not fail, less what was refunded on it.
func paidAmount(payments []model.OrderPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == model.PaymentRecordFailed {
			continue
		}
		total = total.Add(p.Amount)
		if p.Refund != nil {
			total = total.Sub(p.Refund.Amount)
		}
	}
	return total
}

func hasRefund(payments []model.OrderPayment) bool {
	for _, p := range payments {
		if p.Refund != nil {
			return true
		}
	}
	return false
}

func (s *orderServiceImpl) AddPayment(ctx context.Context, orderID string, req dto.PaymentRequest, actor string) (*model.Order, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	actor = actorOrSystem(actor)
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if order.Status == model.OrderStatusCancelled {
			return apperror.Conflict("order %s is cancelled", order.OrderNumber)
		}

		payment := &model.OrderPayment{
			OrderID:      order.ID,
			Method:       model.PaymentMethod(req.Method),
			Amount:       RoundMoney(req.Amount),
			Status:       model.PaymentRecordPending,
			PaymentToken: req.PaymentToken,
			CreatedBy:    actor,
		}
		if err := s.orderRepo.CreatePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}
		order.Payments = append(order.Payments, *payment)

		return s.reconcilePayments(ctx, tx, order, actor)
	})
	if err != nil {
		return nil, err
	}

	s.settlePayments(ctx, order)

	s.log.InfoContext(ctx, "payment added",
		"order_id", order.ID,
		"method", req.Method,
		"amount", req.Amount.StringFixed(2),
		"payment_status", order.PaymentStatus,
	)
	return order, nil
}

func (s *orderServiceImpl) RefundPayment(ctx context.Context, orderID string, paymentID uint, req dto.RefundRequest, actor string) (*model.Order, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("refund amount must be greater than zero")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperror.Validation("refund reason is required")
	}

	actor = actorOrSystem(actor)
	var (
		order          *model.Order
		refund         *model.OrderPaymentRefund
		transactionRef string
		previous       model.PaymentRecordStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}

		payment := findPayment(order, paymentID)
		if payment == nil {
			return apperror.NotFound("payment %d not found on order %s", paymentID, order.OrderNumber)
		}
		if payment.Status == model.PaymentRecordFailed || payment.Refund != nil {
			return apperror.Conflict("payment %d cannot be refunded", paymentID)
		}
		amount := RoundMoney(req.Amount)
		if amount.GreaterThan(payment.Amount) {
			return apperror.Validation("refund %s exceeds payment amount %s", amount.StringFixed(2), payment.Amount.StringFixed(2))
		}

		refund = &model.OrderPaymentRefund{
			PaymentID:  payment.ID,
			Amount:     amount,
			Reason:     strings.TrimSpace(req.Reason),
			CreatedBy:  actor,
			RefundedAt: s.now(),
		}
		if err := s.orderRepo.CreateRefund(ctx, tx, refund); err != nil {
			return fmt.Errorf("store refund: %w", err)
		}
		transactionRef = payment.TransactionRef
		previous = payment.Status
		payment.Refund = refund
		payment.Status = model.PaymentRecordRefunded
		if err := s.orderRepo.UpdatePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		return s.reconcilePayments(ctx, tx, order, actor)
	})
	if err != nil {
		return nil, err
	}

	// the refund is on record before money moves; a declined refund is
	// taken off the books again
	if transactionRef != "" {
		if err := s.gateway.Refund(ctx, transactionRef, refund.Amount); err != nil {
			s.log.WarnContext(ctx, "gateway refund failed",
				"order_id", order.ID,
				"payment_id", paymentID,
				"error", err,
			)
			if err := s.revertRefund(context.WithoutCancel(ctx), orderID, paymentID, refund.ID, previous, actor); err != nil {
				s.log.ErrorContext(ctx, "revert refund failed",
					"order_id", order.ID,
					"payment_id", paymentID,
					"error", err,
				)
			}
			return nil, apperror.Infrastructure("refund payment", err)
		}
	}

	s.log.InfoContext(ctx, "payment refunded",
		"order_id", order.ID,
		"payment_id", paymentID,
		"amount", req.Amount.StringFixed(2),
		"payment_status", order.PaymentStatus,
	)
	return order, nil
}

func (s *orderServiceImpl) revertRefund(ctx context.Context, orderID string, paymentID, refundID uint, status model.PaymentRecordStatus, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		payment := findPayment(order, paymentID)
		if payment == nil {
			return fmt.Errorf("payment %d: %w", paymentID, gorm.ErrRecordNotFound)
		}

		if err := s.orderRepo.DeleteRefund(ctx, tx, refundID); err != nil {
			return fmt.Errorf("delete refund: %w", err)
		}
		payment.Refund = nil
		payment.Status = status
		if err := s.orderRepo.UpdatePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		return s.reconcilePayments(ctx, tx, order, actor)
	})
}

func findPayment(order *model.Order, paymentID uint) *model.OrderPayment {
	for i := range order.Payments {
		if order.Payments[i].ID == paymentID {
			return &order.Payments[i]
		}
	}
	return nil
}

// reconcilePayments recomputes the order's payment totals.
func (s *orderServiceImpl) reconcilePayments(ctx context.Context, tx *gorm.DB, order *model.Order, actor string) error {
	totalPaid := paidAmount(order.Payments)
	remaining := order.Total.Sub(totalPaid)
	status := DerivePaymentStatus(remaining, totalPaid)
	if hasRefund(order.Payments) && !totalPaid.IsPositive() {
		status = model.PaymentStatusRefunded
	}

	if err := s.orderRepo.UpdatePaymentTotals(ctx, tx, order.ID, totalPaid, remaining, status, actor); err != nil {
		return fmt.Errorf("update payment totals: %w", err)
	}
	order.TotalPaid = totalPaid
	order.RemainingAmount = remaining
	order.PaymentStatus = status
	order.UpdatedBy = actor
	return nil
}
