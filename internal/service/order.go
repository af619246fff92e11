package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/client"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/notify"
	"restaurant-order-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest, actor string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	SetFocus(ctx context.Context, orderID string, req dto.SetFocusRequest, actor string) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, newStatus model.OrderStatus, notes, actor string) (*model.Order, error)
	AddPayment(ctx context.Context, orderID string, req dto.PaymentRequest, actor string) (*model.Order, error)
	RefundPayment(ctx context.Context, orderID string, paymentID uint, req dto.RefundRequest, actor string) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	log         *slog.Logger
	pricing     Pricing
	notifier    notify.Notifier
	gateway     client.PaymentGateway
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	resolver    discountResolver
	ledger      pointsLedger
	fidelity    FidelityService
	now         func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	log *slog.Logger,
	pricing Pricing,
	notifier notify.Notifier,
	gateway client.PaymentGateway,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	discountRepo repository.DiscountRepository,
	groupRepo repository.GroupRepository,
	fidelityRepo repository.FidelityRepository,
	fidelity FidelityService,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		log:         log,
		pricing:     pricing,
		notifier:    notifier,
		gateway:     gateway,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		resolver:    discountResolver{discountRepo: discountRepo, groupRepo: groupRepo},
		ledger:      pointsLedger{fidelityRepo: fidelityRepo},
		fidelity:    fidelity,
		now:         time.Now,
	}
}

// missingRef reports a request that points at a row that does not exist.
func missingRef(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Validation(format, args...)
	}
	return apperror.Infrastructure(fmt.Sprintf(format, args...), err)
}

func validateCreateOrder(req dto.CreateOrderRequest) error {
	orderType := model.OrderType(req.Type)
	if !orderType.Valid() {
		return apperror.Validation("unknown order type %q", req.Type)
	}
	if req.CustomerID == nil && strings.TrimSpace(req.GuestName) == "" {
		return apperror.Validation("customer id or guest name is required")
	}
	if orderType == model.OrderTypeDineIn && (req.TableNumber == nil || *req.TableNumber <= 0) {
		return apperror.Validation("table number is required for dine-in orders")
	}
	if orderType == model.OrderTypeDelivery && strings.TrimSpace(req.DeliveryAddress) == "" {
		return apperror.Validation("delivery address is required for delivery orders")
	}
	if len(req.Items) == 0 {
		return apperror.Validation("order must contain at least one item")
	}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return apperror.Validation("item %d: quantity must be greater than zero", i+1)
		}
		if (line.ProductID == nil) == (line.MenuID == nil) {
			return apperror.Validation("item %d: exactly one of product or menu is required", i+1)
		}
		if line.MenuID != nil && line.VariationID != nil {
			return apperror.Validation("item %d: menus have no variations", i+1)
		}
	}
	for i, p := range req.Payments {
		if err := validatePayment(p); err != nil {
			if appErr, ok := apperror.As(err); ok {
				return apperror.Validation("payment %d: %s", i+1, appErr.Message)
			}
			return err
		}
	}
	if req.Tip.IsNegative() {
		return apperror.Validation("tip must not be negative")
	}
	if req.HasUserLimitDiscount && req.ApplyBestDiscount {
		return apperror.Validation("threshold discount and best discount cannot be combined")
	}
	if req.HasUserLimitDiscount && req.UserLimitAmount.IsNegative() {
		return apperror.Validation("user limit amount must not be negative")
	}
	if req.RedeemPoints < 0 {
		return apperror.Validation("points to redeem must not be negative")
	}
	if (req.ApplyBestDiscount || req.RedeemPoints > 0) && req.CustomerID == nil {
		return apperror.Validation("discounts and point redemption require a customer")
	}
	return nil
}

func validatePayment(p dto.PaymentRequest) error {
	if !model.PaymentMethod(p.Method).Valid() {
		return apperror.Validation("unknown payment method %q", p.Method)
	}
	if !p.Amount.IsPositive() {
		return apperror.Validation("payment amount must be greater than zero")
	}
	return nil
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req dto.CreateOrderRequest, actor string) (*model.Order, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	actor = actorOrSystem(actor)
	now := s.now()
	order := &model.Order{
		ID:              uuid.NewString(),
		CustomerID:      req.CustomerID,
		GuestName:       strings.TrimSpace(req.GuestName),
		GuestPhone:      strings.TrimSpace(req.GuestPhone),
		Type:            model.OrderType(req.Type),
		TableNumber:     req.TableNumber,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Tip:             RoundMoney(req.Tip),
		PromoCode:       strings.TrimSpace(req.PromoCode),
		Notes:           req.Notes,
		Status:          model.OrderStatusPending,
		CreatedBy:       actor,
		UpdatedBy:       actor,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day := now.UTC().Format("20060102")
		seq, err := s.orderRepo.NextSequence(ctx, tx, day)
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}
		order.OrderNumber = fmt.Sprintf("%s%04d", day, seq)

		subtotal := decimal.Zero
		for _, line := range req.Items {
			item, err := s.snapshotLine(ctx, tx, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.LineTotal)
			order.Items = append(order.Items, *item)
		}
		order.Subtotal = subtotal
		order.Tax = RoundMoney(subtotal.Mul(s.pricing.OrderTaxRate))
		order.DeliveryFee = decimal.Zero
		if order.Type == model.OrderTypeDelivery {
			order.DeliveryFee = s.pricing.DeliveryFee
		}

		if err := s.applyDiscounts(ctx, tx, order, req, now, actor); err != nil {
			return err
		}
		order.Total = order.Subtotal.Add(order.Tax).Add(order.DeliveryFee).Sub(order.Discount)

		totalPaid := decimal.Zero
		for _, p := range req.Payments {
			order.Payments = append(order.Payments, model.OrderPayment{
				Method:       model.PaymentMethod(p.Method),
				Amount:       RoundMoney(p.Amount),
				Status:       model.PaymentRecordPending,
				PaymentToken: p.PaymentToken,
				CreatedBy:    actor,
			})
			totalPaid = totalPaid.Add(RoundMoney(p.Amount))
		}
		order.TotalPaid = totalPaid
		order.RemainingAmount = order.Total.Sub(totalPaid)
		order.PaymentStatus = DerivePaymentStatus(order.RemainingAmount, totalPaid)

		order.StatusHistory = []model.OrderStatusHistory{{
			FromStatus: model.OrderStatusPending,
			ToStatus:   model.OrderStatusPending,
			Note:       "Order created",
			ChangedBy:  actor,
		}}

		if order.Type == model.OrderTypeDelivery {
			eta := now.Add(s.pricing.EstimatedDelivery)
			order.EstimatedDeliveryTime = &eta
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.settlePayments(ctx, order)

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.Total.StringFixed(2),
		"payment_status", order.PaymentStatus,
	)
	s.notifier.Publish(ctx, notify.Event{
		Type:        notify.EventOrderCreated,
		Audiences:   []notify.Audience{notify.AudienceKitchen, notify.AudienceService, notify.AudienceManager},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OccurredAt:  now,
		Data: map[string]interface{}{
			"type":  order.Type,
			"total": order.Total.StringFixed(2),
		},
	})

	return order, nil
}

// snapshotLine freezes name and price of the referenced product or menu.
func (s *orderServiceImpl) snapshotLine(ctx context.Context, tx *gorm.DB, line dto.OrderLineRequest) (*model.OrderItem, error) {
	item := &model.OrderItem{
		Quantity:     line.Quantity,
		Instructions: strings.TrimSpace(line.Instructions),
	}

	if line.MenuID != nil {
		menu, err := s.productRepo.FindMenu(ctx, tx, *line.MenuID)
		if err != nil {
			return nil, missingRef(err, "menu %s not found", *line.MenuID)
		}
		if !menu.IsActive {
			return nil, apperror.Validation("menu %s is not active", menu.Name)
		}
		item.MenuID = &menu.ID
		item.ProductName = menu.Name
		item.UnitPrice = menu.Price
	} else {
		product, err := s.productRepo.FindByID(ctx, tx, *line.ProductID)
		if err != nil {
			return nil, missingRef(err, "product %s not found", *line.ProductID)
		}
		if !product.Orderable() {
			return nil, apperror.Validation("product %s is not available", product.Name)
		}
		item.ProductID = &product.ID
		item.ProductName = product.Name
		item.UnitPrice = product.BasePrice

		if line.VariationID != nil {
			variation, err := s.productRepo.FindVariation(ctx, tx, *line.VariationID)
			if err != nil {
				return nil, missingRef(err, "variation %s not found", *line.VariationID)
			}
			if variation.ProductID != product.ID {
				return nil, apperror.Validation("variation %s does not belong to product %s", variation.Name, product.Name)
			}
			if !variation.IsActive {
				return nil, apperror.Validation("variation %s is not active", variation.Name)
			}
			item.VariationID = &variation.ID
			item.VariationName = variation.Name
			item.UnitPrice = item.UnitPrice.Add(variation.PriceModifier)
		}
	}

	item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	return item, nil
}

// applyDiscounts fills Discount and DiscountPercentage. The threshold and
// resolver paths are exclusive; redeemed points add on top and the sum
// never exceeds the subtotal.
func (s *orderServiceImpl) applyDiscounts(ctx context.Context, tx *gorm.DB, order *model.Order, req dto.CreateOrderRequest, now time.Time, actor string) error {
	discount := decimal.Zero
	order.DiscountPercentage = decimal.Zero

	switch {
	case req.HasUserLimitDiscount:
		if order.Subtotal.GreaterThanOrEqual(req.UserLimitAmount) {
			discount = RoundMoney(order.Subtotal.Mul(s.pricing.ThresholdDiscountPercent).Div(hundred))
			order.DiscountPercentage = s.pricing.ThresholdDiscountPercent
		}
	case req.ApplyBestDiscount:
		applied, err := s.resolver.best(ctx, tx, *req.CustomerID, order.Subtotal, now)
		if err != nil {
			return err
		}
		if applied != nil {
			discount = applied.Amount
			if applied.Kind == model.DiscountKindPercentage {
				order.DiscountPercentage = applied.Value
			}
			switch applied.Source {
			case DiscountSourceIndividual:
				if _, err := s.resolver.recordUsage(ctx, tx, applied.RuleID); err != nil {
					return err
				}
				order.DiscountRuleID = &applied.RuleID
			case DiscountSourceGroup:
				order.GroupDiscountID = &applied.GroupDiscountID
			}
		}
	}

	if req.RedeemPoints > 0 {
		pointsDiscount, err := s.ledger.redeem(ctx, tx, *req.CustomerID, &order.ID, req.RedeemPoints, actor)
		if err != nil {
			return err
		}
		discount = discount.Add(pointsDiscount)
		order.PointsRedeemed = req.RedeemPoints
	}

	order.Discount = clampDiscount(discount, order.Subtotal)
	return nil
}

// settlePayments charges the pending non-cash payments of a covered order
// through the gateway. It runs only after the order is committed. Cash stays
// pending until collected and a declined charge leaves its payment pending.
func (s *orderServiceImpl) settlePayments(ctx context.Context, order *model.Order) {
	if order.PaymentStatus != model.PaymentStatusCompleted && order.PaymentStatus != model.PaymentStatusOverpaid {
		return
	}

	now := s.now()
	for i := range order.Payments {
		payment := &order.Payments[i]
		if payment.Method == model.PaymentMethodCash || payment.Status != model.PaymentRecordPending {
			continue
		}

		ref, err := s.gateway.Charge(ctx, client.ChargeRequest{
			OrderNumber:  order.OrderNumber,
			Method:       string(payment.Method),
			Amount:       payment.Amount,
			PaymentToken: payment.PaymentToken,
		})
		if err != nil {
			s.log.WarnContext(ctx, "settle payment failed",
				"order_id", order.ID,
				"payment_id", payment.ID,
				"error", err,
			)
			continue
		}

		paidAt := now
		settled := *payment
		settled.Status = model.PaymentRecordCompleted
		settled.TransactionRef = ref
		settled.PaidAt = &paidAt
		if err := s.orderRepo.UpdatePayment(ctx, nil, &settled); err != nil {
			s.log.ErrorContext(ctx, "record settled payment failed, voiding charge",
				"order_id", order.ID,
				"payment_id", payment.ID,
				"transaction_ref", ref,
				"error", err,
			)
			if err := s.gateway.Refund(context.WithoutCancel(ctx), ref, payment.Amount); err != nil {
				s.log.ErrorContext(ctx, "void charge failed",
					"order_id", order.ID,
					"transaction_ref", ref,
					"error", err,
				)
			}
			continue
		}
		*payment = settled
	}
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID, false)
	if err != nil {
		return nil, notFound(err, "order %s not found", orderID)
	}
	return order, nil
}

func (s *orderServiceImpl) SetFocus(ctx context.Context, orderID string, req dto.SetFocusRequest, actor string) (*model.Order, error) {
	if req.Priority < 0 {
		return nil, apperror.Validation("focus priority must not be negative")
	}

	actor = actorOrSystem(actor)
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if isTerminal(order.Status) {
			return apperror.Conflict("order %s is %s and can no longer be focused", order.OrderNumber, order.Status)
		}

		order.IsFocusOrder = req.IsFocus
		order.UpdatedBy = actor
		if req.IsFocus {
			now := s.now()
			order.FocusPriority = req.Priority
			order.FocusReason = strings.TrimSpace(req.Reason)
			order.FocusedAt = &now
			order.FocusedBy = actor
		} else {
			order.FocusPriority = 0
			order.FocusReason = ""
			order.FocusedAt = nil
			order.FocusedBy = ""
		}

		if err := s.orderRepo.UpdateFocus(ctx, tx, order); err != nil {
			return fmt.Errorf("update order focus: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.Event{
		Type:        notify.EventOrderFocusUpdated,
		Audiences:   []notify.Audience{notify.AudienceKitchen, notify.AudienceService},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OccurredAt:  s.now(),
		Data: map[string]interface{}{
			"is_focus": order.IsFocusOrder,
			"priority": order.FocusPriority,
			"reason":   order.FocusReason,
		},
	})

	return order, nil
}
