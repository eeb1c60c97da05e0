package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/notifications"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

const (
	testSecret   = "test_jwt_secret"
	testPassword = "password123"
	providerID   = "ship-standard"
)

type testEnv struct {
	app  *fiber.App
	auth *services.AuthService
	db   *gorm.DB
}

// setupApp builds the API on a private in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))

	bookRepo := repositories.NewGORMBookRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	authService := services.NewAuthService(userRepo, testSecret, nil)
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     repositories.NewGORMOrderRepository(db),
		Books:      bookRepo,
		Payments:   repositories.NewGORMPaymentRepository(db),
		Inventory:  services.NewInventoryService(bookRepo, nil),
		Promotions: services.NewPromotionService(repositories.NewGORMVoucherRepository(db), nil),
		Addresses:  repositories.NewGORMAddressRepository(db),
		Providers:  repositories.NewGORMShippingProviderRepository(db),
		Carts:      repositories.NewGORMCartRepository(db),
		Users:      userRepo,
		Notifier:   notifications.NewLogNotifier(nil),
		Transactor: repositories.NewGORMTransactor(db),
	})
	require.NoError(t, err)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, nil).RegisterRoutes(apiV1)
	protected := apiV1.Group("", middleware.AuthRequired(authService, nil))
	handlers.NewOrderHandler(orderService, nil).RegisterRoutes(protected)

	require.NoError(t, db.Create(&models.ShippingProvider{ID: providerID, Name: "Standard", BaseFee: decimal.RequireFromString("5.00"), IsActive: true}).Error)
	return &testEnv{app: app, auth: authService, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// customer registers username, logs in and creates an address for it.
func (e *testEnv) customer(t *testing.T, username string) (token, userID, addressID string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token = e.login(t, username)
	claims, err := e.auth.ValidateToken(token)
	require.NoError(t, err)
	userID = claims["user_id"].(string)

	addressID = uuid.New().String()
	require.NoError(t, e.db.Create(&models.Address{ID: addressID, UserID: userID, RecipientName: username, Line: "1 Main St", City: "Springfield"}).Error)
	return token, userID, addressID
}

func (e *testEnv) admin(t *testing.T) string {
	t.Helper()
	e.customer(t, "admin")
	require.NoError(t, e.db.Model(&models.User{}).Where("username = ?", "admin").Update("role", models.RoleAdmin).Error)
	return e.login(t, "admin")
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func (e *testEnv) book(t *testing.T, price string, stock int) string {
	t.Helper()
	book := &models.Book{Title: "Book " + uuid.New().String()[:8], Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, repositories.NewGORMBookRepository(e.db).Create(context.Background(), book))
	return book.ID
}

func (e *testEnv) stock(t *testing.T, bookID string) int {
	t.Helper()
	var book models.Book
	require.NoError(t, e.db.First(&book, "id = ?", bookID).Error)
	return book.Stock
}

func orderBody(addressID string, items ...map[string]any) map[string]any {
	return map[string]any{
		"items":                items,
		"shipping_address_id":  addressID,
		"shipping_provider_id": providerID,
		"payment_method":       "bank_transfer",
	}
}

func line(bookID string, qty int) map[string]any {
	return map[string]any{"book_id": bookID, "quantity": qty}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": testPassword,
	}
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	registerResp := decode[map[string]any](t, resp)
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// duplicate username
	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "USER_EXISTS", decode[map[string]any](t, resp)["code"])

	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "testuser", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.login(t, "testuser")
	claims, err := env.auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "testuser", claims["username"])
	assert.Equal(t, models.RoleCustomer, claims["role"])
	assert.Contains(t, claims, "user_id")
}

func TestOrderEndpointsWithoutAuth(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/orders", "", orderBody("addr", line("b", 1)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderLifecycle(t *testing.T) {
	env := setupApp(t)
	token, userID, addressID := env.customer(t, "reader")
	otherToken, _, _ := env.customer(t, "stranger")
	adminToken := env.admin(t)
	bookID := env.book(t, "12.50", 5)

	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, orderBody(addressID, line(bookID, 2)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, userID, order.UserID)
	assert.True(t, decimal.RequireFromString("30.00").Equal(order.TotalPrice), order.TotalPrice.String())
	require.NotNil(t, order.User)
	assert.Equal(t, "reader", order.User.Username)
	// stock is reserved on confirmation, not at checkout
	assert.Equal(t, 5, env.stock(t, bookID))

	resp = env.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Order](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", token, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// customers cannot mark their own orders paid
	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment", token, map[string]string{"transactionId": "fake"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", decode[map[string]any](t, resp)["code"])
	resp = env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unpaid := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderStatusPending, unpaid.Status)
	assert.Equal(t, models.PaymentStatusPending, unpaid.PaymentStatus)
	assert.Equal(t, 5, env.stock(t, bookID))

	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment", adminToken, map[string]string{"transactionId": "tx-42"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderStatusConfirmed, paid.Status)
	assert.Equal(t, models.PaymentStatusCompleted, paid.PaymentStatus)
	assert.Equal(t, 3, env.stock(t, bookID))

	var payment models.Payment
	require.NoError(t, env.db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "tx-42", payment.TransactionID)

	resp = env.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", adminToken, map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_STATUS", decode[map[string]any](t, resp)["code"])

	resp = env.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", adminToken, map[string]string{"status": "shipped", "note": "handed to carrier"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shipped := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, "handed to carrier", shipped.Notes[len(shipped.Notes)-1].Message)

	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", token, map[string]string{"reason": "too slow"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ORDER_NOT_CANCELLABLE", decode[map[string]any](t, resp)["code"])

	resp = env.do(t, http.MethodGet, "/api/v1/admin/orders?status=shipped", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Order](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/v1/admin/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCancelPendingOrder(t *testing.T) {
	env := setupApp(t)
	token, _, addressID := env.customer(t, "reader")
	otherToken, _, _ := env.customer(t, "stranger")
	adminToken := env.admin(t)
	bookID := env.book(t, "9.99", 4)

	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, orderBody(addressID, line(bookID, 1)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[models.Order](t, resp)

	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", otherToken, map[string]string{"reason": "mine now"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", token, map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	assert.Equal(t, 4, env.stock(t, bookID))

	resp = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateOrderErrors(t *testing.T) {
	env := setupApp(t)
	token, _, addressID := env.customer(t, "reader")
	bookID := env.book(t, "20.00", 1)

	now := time.Now()
	require.NoError(t, env.db.Create(&models.Voucher{
		ID:        uuid.New().String(),
		Code:      "OLD10",
		Type:      models.VoucherTypePercentage,
		Value:     decimal.NewFromInt(10),
		ValidFrom: now.Add(-48 * time.Hour),
		ValidTo:   now.Add(-24 * time.Hour),
		IsActive:  true,
	}).Error)

	expired := orderBody(addressID, line(bookID, 1))
	expired["voucher_code"] = "old10"
	badMethod := orderBody(addressID, line(bookID, 1))
	badMethod["payment_method"] = "barter"

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"empty order", orderBody(addressID), http.StatusBadRequest, "EMPTY_ORDER"},
		{"zero quantity", orderBody(addressID, line(bookID, 0)), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"unknown book", orderBody(addressID, line(uuid.New().String(), 1)), http.StatusNotFound, "BOOK_NOT_FOUND"},
		{"insufficient stock", orderBody(addressID, line(bookID, 2)), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"foreign address", orderBody(uuid.New().String(), line(bookID, 1)), http.StatusNotFound, "ADDRESS_NOT_FOUND"},
		{"missing address", orderBody("", line(bookID, 1)), http.StatusBadRequest, "MISSING_SHIPPING_INFO"},
		{"expired voucher", expired, http.StatusBadRequest, "VOUCHER_EXPIRED"},
		{"unknown payment method", badMethod, http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/orders", token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[map[string]any](t, resp)["code"])
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderWithVoucher(t *testing.T) {
	env := setupApp(t)
	token, userID, addressID := env.customer(t, "reader")
	bookID := env.book(t, "25.00", 10)

	now := time.Now()
	voucher := &models.Voucher{
		ID:         uuid.New().String(),
		Code:       "SPRING10",
		Type:       models.VoucherTypePercentage,
		Value:      decimal.NewFromInt(10),
		UsageLimit: 1,
		ValidFrom:  now.Add(-time.Hour),
		ValidTo:    now.Add(time.Hour),
		IsActive:   true,
	}
	require.NoError(t, env.db.Create(voucher).Error)
	require.NoError(t, env.db.Create(&models.CartItem{UserID: userID, BookID: bookID, Quantity: 2}).Error)

	body := orderBody(addressID, line(bookID, 2))
	body["voucher_code"] = "SPRING10"
	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[models.Order](t, resp)
	assert.True(t, decimal.RequireFromString("5.00").Equal(order.DiscountAmount), order.DiscountAmount.String())
	assert.True(t, decimal.RequireFromString("50.00").Equal(order.TotalPrice), order.TotalPrice.String())

	var stored models.Voucher
	require.NoError(t, env.db.First(&stored, "id = ?", voucher.ID).Error)
	assert.Equal(t, 1, stored.UsedCount)

	var cartItems int64
	require.NoError(t, env.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartItems).Error)
	assert.Zero(t, cartItems)

	resp = env.do(t, http.MethodPost, "/api/v1/orders", token, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VOUCHER_EXHAUSTED", decode[map[string]any](t, resp)["code"])
}
