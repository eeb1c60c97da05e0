package handlers

import (
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes. router must already require
// authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", middleware.AdminRequired(), h.HandleUpdateOrderStatus)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Post("/:id/payment", middleware.AdminRequired(), h.HandleConfirmPayment)

	adminRoutes := router.Group("/admin", middleware.AdminRequired())
	adminRoutes.Get("/orders", h.HandleGetAllOrders)
}

type orderLineRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

// CreateOrderRequest is the checkout request body.
type CreateOrderRequest struct {
	Items              []orderLineRequest `json:"items" validate:"dive"`
	ShippingAddressID  string             `json:"shipping_address_id"`
	ShippingProviderID string             `json:"shipping_provider_id"`
	PaymentMethod      string             `json:"payment_method" validate:"omitempty,oneof=cod bank_transfer card e_wallet"`
	Note               string             `json:"note" validate:"max=1000"`
	VoucherCode        string             `json:"voucher_code" validate:"max=50"`
}

// UpdateStatusRequest is the body of an administrative status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

// CancelOrderRequest is the body of a cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ConfirmPaymentRequest is the body of a payment confirmation.
type ConfirmPaymentRequest struct {
	TransactionID string `json:"transactionId" validate:"max=100"`
}

// HandleCreateOrder places an order for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	lines := make([]services.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.OrderLine{BookID: item.BookID, Quantity: item.Quantity})
	}

	order, err := h.service.CreateOrder(c.UserContext(), services.CreateOrderInput{
		UserID:             middleware.UserID(c),
		Items:              lines,
		ShippingAddressID:  req.ShippingAddressID,
		ShippingProviderID: req.ShippingProviderID,
		PaymentMethod:      models.PaymentMethod(req.PaymentMethod),
		Note:               req.Note,
		VoucherCode:        req.VoucherCode,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrders lists the orders of the authenticated user.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	filter := listFilter(c)
	filter.UserID = middleware.UserID(c)
	return h.list(c, filter)
}

// HandleGetAllOrders lists orders of every user, optionally filtered by user_id.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	filter := listFilter(c)
	filter.UserID = c.Query("user_id")
	return h.list(c, filter)
}

func (h *OrderHandler) list(c *fiber.Ctx, filter repositories.OrderFilter) error {
	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

func listFilter(c *fiber.Ctx) repositories.OrderFilter {
	return repositories.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
}

// HandleGetOrderByID retrieves a single order visible to the caller.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.visibleOrder(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order to a new status. Admin only.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.service.UpdateStatus(c.UserContext(), services.StatusUpdateInput{
		OrderID: c.Params("id"),
		Status:  models.OrderStatus(req.Status),
		Note:    req.Note,
		Actor:   actor(c),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleCancelOrder cancels an order. Customers may only cancel their own.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req CancelOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	in := services.CancelOrderInput{
		OrderID: c.Params("id"),
		Reason:  req.Reason,
		Actor:   actor(c),
	}
	if !middleware.IsAdmin(c) {
		in.UserID = middleware.UserID(c)
	}
	order, err := h.service.CancelOrder(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleConfirmPayment records a completed payment for an order. Admin only.
func (h *OrderHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	var req ConfirmPaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.visibleOrder(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	order, err = h.service.ConfirmPayment(c.UserContext(), services.PaymentConfirmationInput{
		OrderID:       order.ID,
		TransactionID: req.TransactionID,
		Actor:         actor(c),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// visibleOrder loads the order in the path. Orders of other users look
// missing to customers.
func (h *OrderHandler) visibleOrder(c *fiber.Ctx) (*models.Order, error) {
	id := c.Params("id")
	order, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if !middleware.IsAdmin(c) && order.UserID != middleware.UserID(c) {
		return nil, errors.Wrapf(services.ErrOrderNotFound, "order %s", id)
	}
	return order, nil
}

func actor(c *fiber.Ctx) string {
	if name := middleware.Username(c); name != "" {
		return name
	}
	return middleware.UserID(c)
}
