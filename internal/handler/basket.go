package handler

import (
	"net/http"

	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/service"

	"github.com/labstack/echo/v4"
)

type BasketHandler struct {
	basketService service.BasketService
}

func NewBasketHandler(basketService service.BasketService) *BasketHandler {
	return &BasketHandler{
		basketService: basketService,
	}
}

// ownerFrom prefers the registered user over the anonymous session.
func ownerFrom(c echo.Context) (service.BasketOwner, error) {
	if userID := middleware.UserID(c); userID != "" {
		return service.BasketOwner{UserID: userID}, nil
	}
	if sessionID := middleware.SessionID(c); sessionID != "" {
		return service.BasketOwner{SessionID: sessionID}, nil
	}
	return service.BasketOwner{}, badRequest("missing " + middleware.HeaderUserID + " or " + middleware.HeaderSessionID + " header")
}

func (h *BasketHandler) GetBasket(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	basket, err := h.basketService.GetBasket(ctx, owner)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	var req dto.AddBasketItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	basket, err := h.basketService.AddItem(ctx, owner, req)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}
	itemID, err := uintParam(c, "itemID")
	if err != nil {
		return err
	}

	var req dto.UpdateBasketItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	basket, err := h.basketService.UpdateItem(ctx, owner, itemID, req)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}
	itemID, err := uintParam(c, "itemID")
	if err != nil {
		return err
	}

	basket, err := h.basketService.RemoveItem(ctx, owner, itemID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) Clear(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	basket, err := h.basketService.Clear(ctx, owner)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) SetDelivery(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	var req dto.SetDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	basket, err := h.basketService.SetDelivery(ctx, owner, req.Delivery)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) ApplyBestDiscount(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	basket, applied, err := h.basketService.ApplyBestDiscount(ctx, owner)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, map[string]interface{}{
		"basket":   basket,
		"discount": applied,
	})
}

// Merge is called by the login flow. It always answers 200.
func (h *BasketHandler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	userID := middleware.UserID(c)
	if userID == "" {
		return badRequest("missing " + middleware.HeaderUserID + " header")
	}

	var req dto.MergeBasketRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(c)
	}

	basket := h.basketService.MergeOnLogin(ctx, req.SessionID, userID)
	return success(c, http.StatusOK, basket)
}

func (h *BasketHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := ownerFrom(c)
	if err != nil {
		return err
	}

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.basketService.Checkout(ctx, owner, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, order)
}
