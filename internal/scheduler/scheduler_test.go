package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
)

type stubAddresses struct{}

func (stubAddresses) FindOwned(context.Context, string, string) (*models.Address, error) {
	return nil, repositories.ErrNotFound
}

type stubProviders struct{}

func (stubProviders) FindActive(context.Context, string) (*models.ShippingProvider, error) {
	return nil, repositories.ErrNotFound
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

type env struct {
	orders *repositories.MockOrderRepository
	books  *repositories.MockBookRepository
	svc    *services.OrderService
	now    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		orders: repositories.NewMockOrderRepository(),
		books:  repositories.NewMockBookRepository(),
		now:    time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     e.orders,
		Books:      e.books,
		Inventory:  services.NewInventoryService(e.books, nil),
		Promotions: services.NewPromotionService(repositories.NewMockVoucherRepository(), nil),
		Addresses:  stubAddresses{},
		Providers:  stubProviders{},
		Clock:      func() time.Time { return e.now },
	})
	require.NoError(t, err)
	e.svc = svc
	return e
}

func (e *env) book(t *testing.T, id string, stock int) {
	t.Helper()
	require.NoError(t, e.books.Create(context.Background(), &models.Book{ID: id, Title: id, Price: decimal.NewFromInt(10), Stock: stock}))
}

func (e *env) stock(t *testing.T, id string) int {
	t.Helper()
	b, err := e.books.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Stock
}

// order stores an order directly in status with one line of qty copies of bookID.
func (e *env) order(t *testing.T, status models.OrderStatus, createdAt time.Time, bookID string, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	o := &models.Order{
		Code:          "BK-TEST-" + createdAt.Format("150405.000000000"),
		UserID:        "u1",
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
		CreatedAt:     createdAt,
	}
	require.NoError(t, e.orders.Create(ctx, o))
	require.NoError(t, e.orders.CreateItems(ctx, []models.OrderItem{{OrderID: o.ID, BookID: bookID, Quantity: qty, Price: decimal.NewFromInt(10)}}))
	return o
}

func (e *env) status(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := e.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestProgression_AdvancesOneStepPerRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	o := e.order(t, models.OrderStatusPending, e.now.Add(-time.Minute), "b1", 2)

	job := NewProgression(e.orders, e.svc, 50, true, nil)

	want := []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusShipped, models.OrderStatusDelivered, models.OrderStatusDelivered}
	for _, status := range want {
		require.NoError(t, job.Run(ctx))
		assert.Equal(t, status, e.status(t, o.ID).Status)
	}

	final := e.status(t, o.ID)
	assert.Equal(t, models.PaymentStatusCompleted, final.PaymentStatus)
	assert.Equal(t, 3, e.stock(t, "b1"))
	assert.Equal(t, services.ActorSystem, final.Notes[len(final.Notes)-1].Actor)
}

func TestProgression_WithoutAutoConfirmLeavesPendingOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	pending := e.order(t, models.OrderStatusPending, e.now.Add(-2*time.Minute), "b1", 1)
	confirmed := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Minute), "b1", 1)

	require.NoError(t, NewProgression(e.orders, e.svc, 50, false, nil).Run(ctx))

	assert.Equal(t, models.OrderStatusPending, e.status(t, pending.ID).Status)
	assert.Equal(t, models.OrderStatusShipped, e.status(t, confirmed.ID).Status)
}

func TestProgression_ContinuesAfterFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 1)
	first := e.order(t, models.OrderStatusPending, e.now.Add(-3*time.Minute), "b1", 5)
	second := e.order(t, models.OrderStatusPending, e.now.Add(-2*time.Minute), "b1", 1)

	require.NoError(t, NewProgression(e.orders, e.svc, 50, true, nil).Run(ctx))

	assert.Equal(t, models.OrderStatusPending, e.status(t, first.ID).Status)
	assert.Equal(t, models.OrderStatusConfirmed, e.status(t, second.ID).Status)
	assert.Equal(t, 0, e.stock(t, "b1"))
}

func TestProgression_EmptyBatchAndBatchSize(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	job := NewProgression(e.orders, e.svc, 1, true, nil)
	require.NoError(t, job.Run(ctx))

	e.book(t, "b1", 10)
	older := e.order(t, models.OrderStatusPending, e.now.Add(-2*time.Minute), "b1", 1)
	newer := e.order(t, models.OrderStatusPending, e.now.Add(-time.Minute), "b1", 1)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, models.OrderStatusConfirmed, e.status(t, older.ID).Status)
	assert.Equal(t, models.OrderStatusPending, e.status(t, newer.ID).Status)
}

func TestProgression_UnreservablePendingOrdersDoNotBlockShipping(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 1)
	stuck := e.order(t, models.OrderStatusPending, e.now.Add(-10*time.Minute), "b1", 5)
	confirmed := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Minute), "b1", 1)

	job := NewProgression(e.orders, e.svc, 1, true, nil)
	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, models.OrderStatusPending, e.status(t, stuck.ID).Status)
	assert.Equal(t, models.OrderStatusDelivered, e.status(t, confirmed.ID).Status)
}

func TestProgression_ConcurrentRunsReserveOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	o := e.order(t, models.OrderStatusPending, e.now.Add(-time.Minute), "b1", 2)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, NewProgression(e.orders, e.svc, 50, true, nil).Run(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, e.stock(t, "b1"))
	confirmations := 0
	for _, note := range e.status(t, o.ID).Notes {
		if note.Status == models.OrderStatusConfirmed {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
}

func TestStaleReclaimer_CancelsOldPendingOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	stale := e.order(t, models.OrderStatusPending, e.now.Add(-31*time.Minute), "b1", 2)
	fresh := e.order(t, models.OrderStatusPending, e.now.Add(-10*time.Minute), "b1", 1)
	confirmed := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Hour), "b1", 1)

	job := NewStaleReclaimer(e.orders, e.svc, 30*time.Minute, 50, nil)
	job.now = func() time.Time { return e.now }
	require.NoError(t, job.Run(ctx))

	got := e.status(t, stale.ID)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, models.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, StaleOrderReason, got.CancelReason)
	assert.Equal(t, models.OrderStatusPending, e.status(t, fresh.ID).Status)
	assert.Equal(t, models.OrderStatusConfirmed, e.status(t, confirmed.ID).Status)
	// never reserved, nothing to give back
	assert.Equal(t, 5, e.stock(t, "b1"))

	require.NoError(t, job.Run(ctx))
	assert.Len(t, e.status(t, stale.ID).Notes, 1)
}

func TestShipmentNotifier_NotifiesOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)

	recent := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Hour), "b1", 1)
	old := e.order(t, models.OrderStatusConfirmed, e.now.Add(-2*time.Hour), "b1", 1)
	ship := func(id string, at time.Time) {
		ok, err := e.orders.TransitionStatus(ctx, id, models.OrderStatusConfirmed, models.StatusChange{To: models.OrderStatusShipped, At: at})
		require.NoError(t, err)
		require.True(t, ok)
	}
	ship(recent.ID, e.now.Add(-2*time.Minute))
	ship(old.ID, e.now.Add(-10*time.Minute))

	notifier := new(MockNotifier)
	notifier.On("SendShippingNotification", recent.ID).Return(nil).Once()

	job := NewShipmentNotifier(e.orders, notifier, 5*time.Minute, 50, nil)
	job.now = func() time.Time { return e.now }
	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	notifier.AssertExpectations(t)
	notifier.AssertNotCalled(t, "SendShippingNotification", old.ID)
	assert.NotNil(t, e.status(t, recent.ID).ShipmentNotifiedAt)
}

func TestShipmentNotifier_NotifiesOrdersDeliveredBeforeRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	o := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Hour), "b1", 1)

	ok, err := e.orders.TransitionStatus(ctx, o.ID, models.OrderStatusConfirmed, models.StatusChange{To: models.OrderStatusShipped, At: e.now.Add(-3 * time.Minute)})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.orders.TransitionStatus(ctx, o.ID, models.OrderStatusShipped, models.StatusChange{To: models.OrderStatusDelivered, At: e.now.Add(-time.Minute)})
	require.NoError(t, err)
	require.True(t, ok)

	notifier := new(MockNotifier)
	notifier.On("SendShippingNotification", o.ID).Return(nil).Once()

	job := NewShipmentNotifier(e.orders, notifier, 5*time.Minute, 50, nil)
	job.now = func() time.Time { return e.now }
	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	notifier.AssertExpectations(t)
	assert.NotNil(t, e.status(t, o.ID).ShipmentNotifiedAt)
}

func TestShipmentNotifier_RetriesFailedDelivery(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.book(t, "b1", 5)
	o := e.order(t, models.OrderStatusConfirmed, e.now.Add(-time.Hour), "b1", 1)
	ok, err := e.orders.TransitionStatus(ctx, o.ID, models.OrderStatusConfirmed, models.StatusChange{To: models.OrderStatusShipped, At: e.now.Add(-time.Minute)})
	require.NoError(t, err)
	require.True(t, ok)

	notifier := new(MockNotifier)
	notifier.On("SendShippingNotification", o.ID).Return(errors.New("broker down")).Once()
	notifier.On("SendShippingNotification", o.ID).Return(nil).Once()

	job := NewShipmentNotifier(e.orders, notifier, 5*time.Minute, 50, nil)
	job.now = func() time.Time { return e.now }

	require.NoError(t, job.Run(ctx))
	assert.Nil(t, e.status(t, o.ID).ShipmentNotifiedAt)

	require.NoError(t, job.Run(ctx))
	assert.NotNil(t, e.status(t, o.ID).ShipmentNotifiedAt)
	notifier.AssertExpectations(t)
}

type failingLister struct {
	*repositories.MockOrderRepository
}

func (failingLister) ListByStatuses(context.Context, []models.OrderStatus, int) ([]models.Order, error) {
	return nil, errors.New("database unavailable")
}

func TestProgression_ReportsSelectionErrors(t *testing.T) {
	e := newEnv(t)
	err := NewProgression(failingLister{e.orders}, e.svc, 50, true, nil).Run(context.Background())
	assert.ErrorContains(t, err, "select orders to advance")
}
