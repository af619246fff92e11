package handler

import (
	"net/http"

	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/service"

	"github.com/labstack/echo/v4"
)

type FidelityHandler struct {
	fidelityService  service.FidelityService
	pointRuleService service.PointRuleService
}

func NewFidelityHandler(fidelityService service.FidelityService, pointRuleService service.PointRuleService) *FidelityHandler {
	return &FidelityHandler{
		fidelityService:  fidelityService,
		pointRuleService: pointRuleService,
	}
}

func (h *FidelityHandler) GetBalance(c echo.Context) error {
	ctx := c.Request().Context()

	balance, err := h.fidelityService.GetBalance(ctx, c.Param("customerID"))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, balance)
}

func (h *FidelityHandler) ListTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := intQuery(c, "page", 1)
	if err != nil {
		return err
	}
	perPage, err := intQuery(c, "per_page", 20)
	if err != nil {
		return err
	}

	result, err := h.fidelityService.ListTransactions(ctx, c.Param("customerID"), page, perPage)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, result)
}

func (h *FidelityHandler) AwardPoints(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AwardPointsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	balance, err := h.fidelityService.AwardPoints(ctx, c.Param("customerID"), req.OrderID, req.Points, req.OrderTotal, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, balance)
}

func (h *FidelityHandler) RedeemPoints(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RedeemPointsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	discount, err := h.fidelityService.RedeemPoints(ctx, c.Param("customerID"), req.OrderID, req.Points, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, dto.RedeemPointsResponse{
		Points:   req.Points,
		Discount: discount,
	})
}

func (h *FidelityHandler) AdjustPoints(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AdjustPointsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	balance, err := h.fidelityService.AdjustPoints(ctx, c.Param("customerID"), req.Delta, req.Reason, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, balance)
}

func (h *FidelityHandler) GetAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	analytics, err := h.fidelityService.GetSystemAnalytics(ctx)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, analytics)
}

// -------- point earning rules --------

func (h *FidelityHandler) ListPointRules(c echo.Context) error {
	ctx := c.Request().Context()

	rules, err := h.pointRuleService.ListRules(ctx)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, rules)
}

func (h *FidelityHandler) CreatePointRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PointRuleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	rule, err := h.pointRuleService.CreateRule(ctx, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, rule)
}

func (h *FidelityHandler) UpdatePointRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PointRuleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	rule, err := h.pointRuleService.UpdateRule(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, rule)
}

func (h *FidelityHandler) DeactivatePointRule(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.pointRuleService.DeactivateRule(ctx, c.Param("id")); err != nil {
		return err
	}

	return success(c, http.StatusOK, nil)
}
