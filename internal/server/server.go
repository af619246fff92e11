package server

import (
	"log/slog"
	"net/http"

	"restaurant-order-engine/internal/handler"
	appmiddleware "restaurant-order-engine/internal/middleware"
	"restaurant-order-engine/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Services struct {
	Basket    service.BasketService
	Order     service.OrderService
	Fidelity  service.FidelityService
	PointRule service.PointRuleService
	Discount  service.DiscountService
	Group     service.GroupService
}

type Server struct {
	echo            *echo.Echo
	basketHandler   *handler.BasketHandler
	orderHandler    *handler.OrderHandler
	fidelityHandler *handler.FidelityHandler
	discountHandler *handler.DiscountHandler
}

func NewServer(log *slog.Logger, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(appmiddleware.ActorMiddleware())

	s := &Server{
		echo:            e,
		basketHandler:   handler.NewBasketHandler(services.Basket),
		orderHandler:    handler.NewOrderHandler(services.Order),
		fidelityHandler: handler.NewFidelityHandler(services.Fidelity, services.PointRule),
		discountHandler: handler.NewDiscountHandler(services.Discount, services.Group),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- basket --------
	basket := api.Group("/basket")
	basket.GET("", s.basketHandler.GetBasket)
	basket.DELETE("", s.basketHandler.Clear)
	basket.POST("/items", s.basketHandler.AddItem)
	basket.PUT("/items/:itemID", s.basketHandler.UpdateItem)
	basket.DELETE("/items/:itemID", s.basketHandler.RemoveItem)
	basket.PUT("/delivery", s.basketHandler.SetDelivery)
	basket.POST("/discount", s.basketHandler.ApplyBestDiscount)
	basket.POST("/merge", s.basketHandler.Merge)
	basket.POST("/checkout", s.basketHandler.Checkout)

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.PUT("/:id/status", s.orderHandler.UpdateStatus)
	orders.PUT("/:id/focus", s.orderHandler.SetFocus)
	orders.POST("/:id/payments", s.orderHandler.AddPayment)
	orders.POST("/:id/payments/:paymentID/refund", s.orderHandler.RefundPayment)

	// -------- fidelity --------
	fidelity := api.Group("/fidelity")
	fidelity.GET("/analytics", s.fidelityHandler.GetAnalytics)
	fidelity.GET("/customers/:customerID", s.fidelityHandler.GetBalance)
	fidelity.GET("/customers/:customerID/transactions", s.fidelityHandler.ListTransactions)
	fidelity.POST("/customers/:customerID/award", s.fidelityHandler.AwardPoints)
	fidelity.POST("/customers/:customerID/redeem", s.fidelityHandler.RedeemPoints)
	fidelity.POST("/customers/:customerID/adjust", s.fidelityHandler.AdjustPoints)
	fidelity.GET("/rules", s.fidelityHandler.ListPointRules)
	fidelity.POST("/rules", s.fidelityHandler.CreatePointRule)
	fidelity.PUT("/rules/:id", s.fidelityHandler.UpdatePointRule)
	fidelity.DELETE("/rules/:id", s.fidelityHandler.DeactivatePointRule)

	// -------- discounts --------
	discounts := api.Group("/discounts")
	discounts.GET("/best", s.discountHandler.FindBest)
	discounts.GET("/rules", s.discountHandler.ListRules)
	discounts.POST("/rules", s.discountHandler.CreateRule)
	discounts.PUT("/rules/:id", s.discountHandler.UpdateRule)
	discounts.DELETE("/rules/:id", s.discountHandler.DeactivateRule)

	groups := api.Group("/groups")
	groups.POST("", s.discountHandler.CreateGroup)
	groups.POST("/:id/discounts", s.discountHandler.AddGroupDiscount)
	groups.POST("/:id/memberships", s.discountHandler.IssueMembership)
	groups.DELETE("/memberships/:id", s.discountHandler.RevokeMembership)
	groups.POST("/memberships/verify", s.discountHandler.VerifyMembership)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
