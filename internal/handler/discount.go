package handler

import (
	"net/http"

	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type DiscountHandler struct {
	discountService service.DiscountService
	groupService    service.GroupService
}

func NewDiscountHandler(discountService service.DiscountService, groupService service.GroupService) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
		groupService:    groupService,
	}
}

func (h *DiscountHandler) FindBest(c echo.Context) error {
	ctx := c.Request().Context()

	customerID := c.QueryParam("customer_id")
	if customerID == "" {
		return badRequest("missing customer_id")
	}
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return badRequest("invalid amount")
	}

	applied, err := h.discountService.FindBestApplicableDiscount(ctx, customerID, amount)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, applied)
}

func (h *DiscountHandler) ListRules(c echo.Context) error {
	ctx := c.Request().Context()

	rules, err := h.discountService.ListRules(ctx, c.QueryParam("customer_id"))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, rules)
}

func (h *DiscountHandler) CreateRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CustomerDiscountRuleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	rule, err := h.discountService.CreateRule(ctx, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, rule)
}

func (h *DiscountHandler) UpdateRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CustomerDiscountRuleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	rule, err := h.discountService.UpdateRule(ctx, c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, rule)
}

func (h *DiscountHandler) DeactivateRule(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.discountService.DeactivateRule(ctx, c.Param("id")); err != nil {
		return err
	}

	return success(c, http.StatusOK, nil)
}

// -------- groups --------

func (h *DiscountHandler) CreateGroup(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateGroupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	group, err := h.groupService.CreateGroup(ctx, req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, group)
}

func (h *DiscountHandler) AddGroupDiscount(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.GroupDiscountRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	discount, err := h.groupService.AddGroupDiscount(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, discount)
}

func (h *DiscountHandler) IssueMembership(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.IssueMembershipRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	membership, err := h.groupService.IssueMembership(ctx, c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, membership)
}

func (h *DiscountHandler) RevokeMembership(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.groupService.RevokeMembership(ctx, c.Param("id")); err != nil {
		return err
	}

	return success(c, http.StatusOK, nil)
}

func (h *DiscountHandler) VerifyMembership(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VerifyMembershipRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	membership, err := h.groupService.VerifyMembershipCode(ctx, req.Code)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, membership)
}
