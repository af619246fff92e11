package handler

import (
	"net/http"

	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.orderService.CreateOrder(ctx, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.orderService.UpdateStatus(ctx, c.Param("id"), model.OrderStatus(req.Status), req.Notes, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, order)
}

func (h *OrderHandler) SetFocus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SetFocusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.orderService.SetFocus(ctx, c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, order)
}

func (h *OrderHandler) AddPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.orderService.AddPayment(ctx, c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, order)
}

func (h *OrderHandler) RefundPayment(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID, err := uintParam(c, "paymentID")
	if err != nil {
		return err
	}

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	order, err := h.orderService.RefundPayment(ctx, c.Param("id"), paymentID, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, order)
}
