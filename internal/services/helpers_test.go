package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

type MockAddressFinder struct {
	mock.Mock
}

func (m *MockAddressFinder) FindOwned(_ context.Context, userID, addressID string) (*models.Address, error) {
	args := m.Called(userID, addressID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Address), args.Error(1)
}

type MockProviderFinder struct {
	mock.Mock
}

func (m *MockProviderFinder) FindActive(_ context.Context, id string) (*models.ShippingProvider, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShippingProvider), args.Error(1)
}

type MockCartCleaner struct {
	mock.Mock
}

func (m *MockCartCleaner) RemoveItem(_ context.Context, userID, bookID string) error {
	return m.Called(userID, bookID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	return m.Called(order.ID).Error(0)
}

func (m *MockNotifier) SendShippingNotification(_ context.Context, order *models.Order) error {
	return m.Called(order.ID).Error(0)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

// fixture is an order service over in-memory repositories.
type fixture struct {
	svc       *services.OrderService
	orders    *repositories.MockOrderRepository
	books     *repositories.MockBookRepository
	vouchers  *repositories.MockVoucherRepository
	addresses *MockAddressFinder
	providers *MockProviderFinder
	carts     *MockCartCleaner
	notifier  *MockNotifier
	users     *MockUserRepository
	now       time.Time
}

const (
	testUserID     = "user-1"
	testAddressID  = "addr-1"
	testProviderID = "ship-1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStock(t, nil)
}

// newFixtureWithStock lets wrap replace the book repository the inventory
// writes stock through.
func newFixtureWithStock(t *testing.T, wrap func(*repositories.MockBookRepository) repositories.BookRepository) *fixture {
	t.Helper()

	f := &fixture{
		orders:    repositories.NewMockOrderRepository(),
		books:     repositories.NewMockBookRepository(),
		vouchers:  repositories.NewMockVoucherRepository(),
		addresses: new(MockAddressFinder),
		providers: new(MockProviderFinder),
		carts:     new(MockCartCleaner),
		notifier:  new(MockNotifier),
		users:     new(MockUserRepository),
		now:       time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	f.addresses.On("FindOwned", testUserID, testAddressID).
		Return(&models.Address{ID: testAddressID, UserID: testUserID, RecipientName: "Ann", City: "Hanoi"}, nil).Maybe()
	f.addresses.On("FindOwned", mock.Anything, mock.Anything).Return(nil, repositories.ErrNotFound).Maybe()
	f.providers.On("FindActive", testProviderID).
		Return(&models.ShippingProvider{ID: testProviderID, Name: "Express", BaseFee: dec("5.00"), IsActive: true}, nil).Maybe()
	f.providers.On("FindActive", mock.Anything).Return(nil, repositories.ErrNotFound).Maybe()
	f.carts.On("RemoveItem", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("SendOrderConfirmation", mock.Anything).Return(nil).Maybe()
	f.users.On("GetByID", testUserID).Return(&models.User{ID: testUserID, Username: "ann", Email: "ann@example.com"}, nil).Maybe()

	var stock repositories.BookRepository = f.books
	if wrap != nil {
		stock = wrap(f.books)
	}
	inventory := services.NewInventoryService(stock, nil)
	promotions := services.NewPromotionService(f.vouchers, nil)
	promotions.SetClock(func() time.Time { return f.now })

	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     f.orders,
		Books:      f.books,
		Inventory:  inventory,
		Promotions: promotions,
		Addresses:  f.addresses,
		Providers:  f.providers,
		Carts:      f.carts,
		Users:      f.users,
		Notifier:   f.notifier,
		Clock:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) addBook(t *testing.T, id, price string, stock int) {
	t.Helper()
	require.NoError(t, f.books.Create(context.Background(), &models.Book{
		ID:         id,
		Title:      "Book " + id,
		CategoryID: "cat-" + id,
		Price:      dec(price),
		Stock:      stock,
	}))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	book, err := f.books.GetByID(context.Background(), id)
	require.NoError(t, err)
	return book.Stock
}

func (f *fixture) checkout(lines ...services.OrderLine) services.CreateOrderInput {
	return services.CreateOrderInput{
		UserID:             testUserID,
		Items:              lines,
		ShippingAddressID:  testAddressID,
		ShippingProviderID: testProviderID,
		PaymentMethod:      models.PaymentMethodCOD,
	}
}

func (f *fixture) placeOrder(t *testing.T, lines ...services.OrderLine) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.checkout(lines...))
	require.NoError(t, err)
	return order
}
