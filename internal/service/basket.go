package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/cache"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/lock"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// BasketOwner identifies a basket by registered user or by anonymous
// session. Exactly one of the two is set.
type BasketOwner struct {
	UserID    string
	SessionID string
}

func (o BasketOwner) validate() error {
	if (o.UserID == "") == (o.SessionID == "") {
		return apperror.Validation("basket owner needs exactly one of user id or session id")
	}
	return nil
}

func userBasketKey(userID string) string       { return "basket:user:" + userID }
func sessionBasketKey(sessionID string) string { return "basket:session:" + sessionID }

func (o BasketOwner) key() string {
	if o.UserID != "" {
		return userBasketKey(o.UserID)
	}
	return sessionBasketKey(o.SessionID)
}

type BasketService interface {
	GetBasket(ctx context.Context, owner BasketOwner) (*model.Basket, error)
	AddItem(ctx context.Context, owner BasketOwner, req dto.AddBasketItemRequest) (*model.Basket, error)
	UpdateItem(ctx context.Context, owner BasketOwner, itemID uint, req dto.UpdateBasketItemRequest) (*model.Basket, error)
	RemoveItem(ctx context.Context, owner BasketOwner, itemID uint) (*model.Basket, error)
	Clear(ctx context.Context, owner BasketOwner) (*model.Basket, error)
	SetDelivery(ctx context.Context, owner BasketOwner, delivery bool) (*model.Basket, error)
	ApplyBestDiscount(ctx context.Context, owner BasketOwner) (*model.Basket, *AppliedDiscount, error)
	MergeOnLogin(ctx context.Context, sessionID, userID string) *model.Basket
	Checkout(ctx context.Context, owner BasketOwner, req dto.CheckoutRequest, actor string) (*model.Order, error)
}

type basketServiceImpl struct {
	db          *gorm.DB
	log         *slog.Logger
	cache       cache.Cache
	pricing     Pricing
	productRepo repository.ProductRepository
	basketRepo  repository.BasketRepository
	discounts   DiscountService
	orders      OrderService
	locks       *lock.KeyedMutex
	loads       singleflight.Group
	now         func() time.Time
}

func NewBasketService(
	db *gorm.DB,
	log *slog.Logger,
	c cache.Cache,
	pricing Pricing,
	productRepo repository.ProductRepository,
	basketRepo repository.BasketRepository,
	discounts DiscountService,
	orders OrderService,
) BasketService {
	return &basketServiceImpl{
		db:          db,
		log:         log,
		cache:       c,
		pricing:     pricing,
		productRepo: productRepo,
		basketRepo:  basketRepo,
		discounts:   discounts,
		orders:      orders,
		locks:       lock.NewKeyedMutex(),
		now:         time.Now,
	}
}

// RecomputeBasket derives every money field of b from its items.
func RecomputeBasket(b *model.Basket) {
	subtotal := decimal.Zero
	for i := range b.Items {
		item := &b.Items[i]
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
		for _, side := range item.SideItems {
			subtotal = subtotal.Add(side.UnitPrice.Mul(decimal.NewFromInt(int64(side.Quantity))))
		}
	}

	b.Subtotal = subtotal
	b.Tax = RoundMoney(subtotal.Mul(basketTaxRate))
	b.Discount = clampDiscount(b.Discount, subtotal)
	b.Total = subtotal.Add(b.Tax).Add(b.DeliveryFee).Sub(b.Discount)
}

func emptyBasket(owner BasketOwner) *model.Basket {
	b := &model.Basket{Items: []model.BasketItem{}}
	if owner.UserID != "" {
		b.UserID = &owner.UserID
	} else {
		b.SessionID = &owner.SessionID
	}
	RecomputeBasket(b)
	return b
}

// load returns the owner's live basket, or nil when there is none or it
// has expired.
func (s *basketServiceImpl) load(ctx context.Context, tx *gorm.DB, owner BasketOwner, forUpdate bool) (*model.Basket, error) {
	var (
		basket *model.Basket
		err    error
	)
	if owner.UserID != "" {
		basket, err = s.basketRepo.FindByUser(ctx, tx, owner.UserID, forUpdate)
	} else {
		basket, err = s.basketRepo.FindBySession(ctx, tx, owner.SessionID, forUpdate)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Infrastructure("load basket", err)
	}
	if basket.Expired(s.now()) {
		return nil, nil
	}

	return basket, nil
}

func (s *basketServiceImpl) GetBasket(ctx context.Context, owner BasketOwner) (*model.Basket, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	key := owner.key()
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		unlock := s.locks.Lock(key)
		defer unlock()

		basket, err := s.load(ctx, nil, owner, false)
		if err != nil {
			return nil, err
		}
		if basket == nil {
			return emptyBasket(owner), nil
		}
		s.store(ctx, key, basket)
		return basket, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*model.Basket), nil
}

func (s *basketServiceImpl) cached(ctx context.Context, key string) *model.Basket {
	if s.cache == nil {
		return nil
	}

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "basket cache read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var basket model.Basket
	if err := json.Unmarshal([]byte(raw), &basket); err != nil {
		s.log.WarnContext(ctx, "discarding unreadable basket snapshot", "key", key, "error", err)
		_ = s.cache.Remove(ctx, key)
		return nil
	}
	if basket.Expired(s.now()) {
		return nil
	}

	return &basket
}

func (s *basketServiceImpl) store(ctx context.Context, key string, basket *model.Basket) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(basket)
	if err != nil {
		s.log.WarnContext(ctx, "encode basket snapshot", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, string(raw)); err != nil {
		s.log.WarnContext(ctx, "basket cache write failed", "key", key, "error", err)
	}
}

func (s *basketServiceImpl) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	for _, key := range keys {
		if err := s.cache.Remove(ctx, key); err != nil {
			s.log.WarnContext(ctx, "basket cache invalidation failed", "key", key, "error", err)
		}
	}
}

// mutate runs fn on the owner's locked basket and recomputes totals in the
// same transaction. Without create, a missing basket is a NotFound failure.
func (s *basketServiceImpl) mutate(ctx context.Context, owner BasketOwner, create bool, fn func(tx *gorm.DB, basket *model.Basket) error) (*model.Basket, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(owner.key())
	defer unlock()

	return s.mutateLocked(ctx, owner, create, fn)
}

// mutateLocked is mutate for callers already holding the owner's key.
func (s *basketServiceImpl) mutateLocked(ctx context.Context, owner BasketOwner, create bool, fn func(tx *gorm.DB, basket *model.Basket) error) (*model.Basket, error) {
	var basket *model.Basket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		basket, err = s.load(ctx, tx, owner, true)
		if err != nil {
			return err
		}
		if basket == nil {
			if !create {
				return apperror.NotFound("basket not found")
			}
			basket = emptyBasket(owner)
			basket.ExpiresAt = s.now().Add(BasketRetention)
			if err := s.basketRepo.Create(ctx, tx, basket); err != nil {
				return fmt.Errorf("create basket: %w", err)
			}
		}

		if err := fn(tx, basket); err != nil {
			return err
		}

		fresh, err := s.load(ctx, tx, owner, false)
		if err != nil {
			return err
		}
		if fresh == nil {
			return apperror.NotFound("basket not found")
		}
		fresh.Discount = basket.Discount
		fresh.DeliveryFee = basket.DeliveryFee
		RecomputeBasket(fresh)
		if err := s.basketRepo.SaveTotals(ctx, tx, fresh); err != nil {
			return fmt.Errorf("save basket totals: %w", err)
		}
		basket = fresh
		return nil
	})
	s.invalidate(ctx, owner.key())
	if err != nil {
		return nil, err
	}

	return basket, nil
}

func (s *basketServiceImpl) AddItem(ctx context.Context, owner BasketOwner, req dto.AddBasketItemRequest) (*model.Basket, error) {
	if req.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be greater than zero")
	}
	for _, side := range req.SideItems {
		if side.Quantity <= 0 {
			return nil, apperror.Validation("side item quantity must be greater than zero")
		}
	}

	basket, err := s.mutate(ctx, owner, true, func(tx *gorm.DB, basket *model.Basket) error {
		product, err := s.productRepo.FindByID(ctx, tx, req.ProductID)
		if err != nil {
			return missingRef(err, "product %s not found", req.ProductID)
		}
		if !product.Orderable() {
			return apperror.Validation("product %s is not available", product.Name)
		}

		unitPrice := product.BasePrice
		if req.VariationID != nil {
			variation, err := s.productRepo.FindVariation(ctx, tx, *req.VariationID)
			if err != nil {
				return missingRef(err, "variation %s not found", *req.VariationID)
			}
			if variation.ProductID != product.ID {
				return apperror.Validation("variation %s does not belong to product %s", variation.Name, product.Name)
			}
			if !variation.IsActive {
				return apperror.Validation("variation %s is not active", variation.Name)
			}
			unitPrice = unitPrice.Add(variation.PriceModifier)
		}

		sides := make([]model.BasketItemSideItem, 0, len(req.SideItems))
		for _, sr := range req.SideItems {
			side, err := s.productRepo.FindByID(ctx, tx, sr.ProductID)
			if err != nil {
				return missingRef(err, "side item %s not found", sr.ProductID)
			}
			if !side.Orderable() {
				return apperror.Validation("side item %s is not available", side.Name)
			}
			sides = append(sides, model.BasketItemSideItem{
				ProductID: side.ID,
				Quantity:  sr.Quantity,
				UnitPrice: side.BasePrice,
			})
		}

		instructions := strings.TrimSpace(req.Instructions)
		if line := basket.FindLine(product.ID, req.VariationID); line != nil {
			line.Quantity += req.Quantity
			line.UnitPrice = unitPrice
			line.LineTotal = unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			if instructions != "" {
				line.Instructions = instructions
			}
			if err := s.basketRepo.UpdateItem(ctx, tx, line); err != nil {
				return fmt.Errorf("update basket item: %w", err)
			}
			return s.mergeSideItems(ctx, tx, line, sides)
		}

		item := &model.BasketItem{
			BasketID:     basket.ID,
			ProductID:    product.ID,
			VariationID:  req.VariationID,
			Quantity:     req.Quantity,
			UnitPrice:    unitPrice,
			LineTotal:    unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Instructions: instructions,
			SideItems:    sides,
		}
		if err := s.basketRepo.CreateItem(ctx, tx, item); err != nil {
			return fmt.Errorf("create basket item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "basket item added", "basket_id", basket.ID, "product_id", req.ProductID, "quantity", req.Quantity)
	return basket, nil
}

// mergeSideItems folds sides into target, adding quantities per product.
func (s *basketServiceImpl) mergeSideItems(ctx context.Context, tx *gorm.DB, target *model.BasketItem, sides []model.BasketItemSideItem) error {
	for _, side := range sides {
		merged := false
		for i := range target.SideItems {
			existing := &target.SideItems[i]
			if existing.ProductID != side.ProductID {
				continue
			}
			existing.Quantity += side.Quantity
			if err := s.basketRepo.UpdateSideItemQuantity(ctx, tx, existing.ID, existing.Quantity); err != nil {
				return fmt.Errorf("update side item: %w", err)
			}
			merged = true
			break
		}
		if merged {
			continue
		}

		created := model.BasketItemSideItem{
			BasketItemID: target.ID,
			ProductID:    side.ProductID,
			Quantity:     side.Quantity,
			UnitPrice:    side.UnitPrice,
		}
		if err := s.basketRepo.CreateSideItem(ctx, tx, &created); err != nil {
			return fmt.Errorf("create side item: %w", err)
		}
		target.SideItems = append(target.SideItems, created)
	}
	return nil
}

func findItem(basket *model.Basket, itemID uint) *model.BasketItem {
	for i := range basket.Items {
		if basket.Items[i].ID == itemID {
			return &basket.Items[i]
		}
	}
	return nil
}

func (s *basketServiceImpl) UpdateItem(ctx context.Context, owner BasketOwner, itemID uint, req dto.UpdateBasketItemRequest) (*model.Basket, error) {
	if req.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be greater than zero")
	}

	return s.mutate(ctx, owner, false, func(tx *gorm.DB, basket *model.Basket) error {
		item := findItem(basket, itemID)
		if item == nil {
			return apperror.NotFound("basket item %d not found", itemID)
		}

		item.Quantity = req.Quantity
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if req.Instructions != nil {
			item.Instructions = strings.TrimSpace(*req.Instructions)
		}
		if err := s.basketRepo.UpdateItem(ctx, tx, item); err != nil {
			return fmt.Errorf("update basket item: %w", err)
		}
		return nil
	})
}

func (s *basketServiceImpl) RemoveItem(ctx context.Context, owner BasketOwner, itemID uint) (*model.Basket, error) {
	return s.mutate(ctx, owner, false, func(tx *gorm.DB, basket *model.Basket) error {
		if findItem(basket, itemID) == nil {
			return apperror.NotFound("basket item %d not found", itemID)
		}
		if err := s.basketRepo.DeleteItem(ctx, tx, itemID); err != nil {
			return fmt.Errorf("delete basket item: %w", err)
		}
		return nil
	})
}

func (s *basketServiceImpl) Clear(ctx context.Context, owner BasketOwner) (*model.Basket, error) {
	return s.mutate(ctx, owner, false, func(tx *gorm.DB, basket *model.Basket) error {
		if err := s.basketRepo.DeleteItems(ctx, tx, basket.ID); err != nil {
			return fmt.Errorf("clear basket: %w", err)
		}
		basket.Discount = decimal.Zero
		return nil
	})
}

func (s *basketServiceImpl) SetDelivery(ctx context.Context, owner BasketOwner, delivery bool) (*model.Basket, error) {
	return s.mutate(ctx, owner, false, func(tx *gorm.DB, basket *model.Basket) error {
		basket.DeliveryFee = decimal.Zero
		if delivery {
			basket.DeliveryFee = s.pricing.DeliveryFee
		}
		return nil
	})
}

// ApplyBestDiscount previews the customer's best discount against the
// basket subtotal. No usage is consumed until the order is placed.
func (s *basketServiceImpl) ApplyBestDiscount(ctx context.Context, owner BasketOwner) (*model.Basket, *AppliedDiscount, error) {
	if err := owner.validate(); err != nil {
		return nil, nil, err
	}
	if owner.UserID == "" {
		return nil, nil, apperror.Validation("discounts apply to registered customers only")
	}

	unlock := s.locks.Lock(owner.key())
	defer unlock()

	current, err := s.load(ctx, nil, owner, false)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, apperror.NotFound("basket not found")
	}
	applied, err := s.discounts.FindBestApplicableDiscount(ctx, owner.UserID, current.Subtotal)
	if err != nil {
		return nil, nil, err
	}

	basket, err := s.mutateLocked(ctx, owner, false, func(tx *gorm.DB, basket *model.Basket) error {
		basket.Discount = decimal.Zero
		if applied != nil {
			basket.Discount = applied.Amount
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return basket, applied, nil
}

// MergeOnLogin folds the session basket into the user's basket. It never
// fails: errors are logged and the user's basket is returned as it stands.
func (s *basketServiceImpl) MergeOnLogin(ctx context.Context, sessionID, userID string) *model.Basket {
	userOwner := BasketOwner{UserID: userID}
	if sessionID == "" || userID == "" {
		s.log.WarnContext(ctx, "basket merge skipped", "session_id", sessionID, "user_id", userID)
		return emptyBasket(userOwner)
	}

	basket, err := s.merge(ctx, sessionID, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "basket merge failed", "session_id", sessionID, "user_id", userID, "error", err)
		basket, err = s.GetBasket(ctx, userOwner)
		if err != nil {
			s.log.ErrorContext(ctx, "load user basket after failed merge", "user_id", userID, "error", err)
			return emptyBasket(userOwner)
		}
	}

	return basket
}

func (s *basketServiceImpl) merge(ctx context.Context, sessionID, userID string) (*model.Basket, error) {
	userOwner := BasketOwner{UserID: userID}
	sessionOwner := BasketOwner{SessionID: sessionID}
	unlock := s.locks.Lock(userOwner.key(), sessionOwner.key())
	defer unlock()

	var result *model.Basket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anon, err := s.load(ctx, tx, sessionOwner, true)
		if err != nil {
			return err
		}
		user, err := s.load(ctx, tx, userOwner, true)
		if err != nil {
			return err
		}

		switch {
		case anon == nil:
			result = user
			return nil
		case user == nil:
			if err := s.basketRepo.Reparent(ctx, tx, anon.ID, userID); err != nil {
				return fmt.Errorf("reparent basket: %w", err)
			}
		default:
			for i := range anon.Items {
				if err := s.mergeLine(ctx, tx, user, &anon.Items[i]); err != nil {
					return err
				}
			}
			if err := s.basketRepo.SoftDelete(ctx, tx, anon.ID); err != nil {
				return fmt.Errorf("delete session basket: %w", err)
			}
		}

		result, err = s.load(ctx, tx, userOwner, false)
		if err != nil {
			return err
		}
		if result == nil {
			return apperror.NotFound("basket not found")
		}
		if user != nil {
			result.Discount = user.Discount
		}
		RecomputeBasket(result)
		if err := s.basketRepo.SaveTotals(ctx, tx, result); err != nil {
			return fmt.Errorf("save basket totals: %w", err)
		}
		return nil
	})
	s.invalidate(ctx, userOwner.key(), sessionOwner.key())
	if err != nil {
		return nil, err
	}
	if result == nil {
		return emptyBasket(userOwner), nil
	}

	s.log.InfoContext(ctx, "basket merged", "session_id", sessionID, "user_id", userID, "basket_id", result.ID)
	return result, nil
}

// mergeLine moves one session line into the user basket, adding to a
// matching line when there is one.
func (s *basketServiceImpl) mergeLine(ctx context.Context, tx *gorm.DB, user *model.Basket, item *model.BasketItem) error {
	match := user.FindLine(item.ProductID, item.VariationID)
	if match == nil {
		if err := s.basketRepo.MoveItem(ctx, tx, item.ID, user.ID); err != nil {
			return fmt.Errorf("move basket item: %w", err)
		}
		return nil
	}

	match.Quantity += item.Quantity
	match.LineTotal = match.UnitPrice.Mul(decimal.NewFromInt(int64(match.Quantity)))
	if match.Instructions == "" {
		match.Instructions = item.Instructions
	}
	if err := s.basketRepo.UpdateItem(ctx, tx, match); err != nil {
		return fmt.Errorf("update basket item: %w", err)
	}
	if err := s.mergeSideItems(ctx, tx, match, item.SideItems); err != nil {
		return err
	}
	if err := s.basketRepo.DeleteItem(ctx, tx, item.ID); err != nil {
		return fmt.Errorf("delete merged basket item: %w", err)
	}
	return nil
}

// basketLines turns basket items into order lines. Side items become lines
// of their own.
func basketLines(basket *model.Basket) []dto.OrderLineRequest {
	lines := make([]dto.OrderLineRequest, 0, len(basket.Items))
	for _, item := range basket.Items {
		productID := item.ProductID
		lines = append(lines, dto.OrderLineRequest{
			ProductID:    &productID,
			VariationID:  item.VariationID,
			Quantity:     item.Quantity,
			Instructions: item.Instructions,
		})
		for _, side := range item.SideItems {
			sideID := side.ProductID
			lines = append(lines, dto.OrderLineRequest{
				ProductID: &sideID,
				Quantity:  side.Quantity,
			})
		}
	}
	return lines
}

func (s *basketServiceImpl) Checkout(ctx context.Context, owner BasketOwner, req dto.CheckoutRequest, actor string) (*model.Order, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	key := owner.key()
	unlock := s.locks.Lock(key)
	defer unlock()

	basket, err := s.load(ctx, nil, owner, false)
	if err != nil {
		return nil, err
	}
	if basket == nil || len(basket.Items) == 0 {
		return nil, apperror.Validation("basket is empty")
	}

	orderReq := dto.CreateOrderRequest{
		GuestName:            req.GuestName,
		GuestPhone:           req.GuestPhone,
		Type:                 req.Type,
		TableNumber:          req.TableNumber,
		DeliveryAddress:      req.DeliveryAddress,
		Items:                basketLines(basket),
		Payments:             req.Payments,
		Tip:                  req.Tip,
		Notes:                req.Notes,
		PromoCode:            basket.PromoCode,
		HasUserLimitDiscount: req.HasUserLimitDiscount,
		UserLimitAmount:      req.UserLimitAmount,
		ApplyBestDiscount:    req.ApplyBestDiscount,
		RedeemPoints:         req.RedeemPoints,
	}
	if owner.UserID != "" {
		orderReq.CustomerID = &owner.UserID
	}

	order, err := s.orders.CreateOrder(ctx, orderReq, actor)
	if err != nil {
		return nil, err
	}

	if err := s.basketRepo.SoftDelete(ctx, nil, basket.ID); err != nil {
		s.log.ErrorContext(ctx, "delete checked out basket", "basket_id", basket.ID, "order_id", order.ID, "error", err)
	}
	s.invalidate(ctx, key)

	s.log.InfoContext(ctx, "basket checked out", "basket_id", basket.ID, "order_id", order.ID)
	return order, nil
}
