package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/event"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) (*Store, *event.Log) {
	t.Helper()
	log := event.NewLog()
	return NewStore(log), log
}

func TestCreateProductAppendsCreatedEvent(t *testing.T) {
	s, log := newTestStore(t)

	p, err := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware",
		Quantity: 12, ReorderLevel: 10, Price: 499,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), p.ID)

	events := log.ReadSince(0)
	require.Len(t, events, 1)
	require.Equal(t, uint64(1), events[0].Sequence)
	require.Equal(t, event.KindCreated, events[0].Kind)
	require.Equal(t, int64(1), events[0].SubjectID)
	require.Equal(t, "New product Widget added to inventory", events[0].Description)
}

func TestQuantityDropBelowReorderLevelDerivesBothEvents(t *testing.T) {
	s, log := newTestStore(t)
	p, err := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware",
		Quantity: 12, ReorderLevel: 10, Price: 499,
	})
	require.NoError(t, err)

	updated, appended, err := s.UpdateProduct(p.ID, ProductPatch{Quantity: ptr(int64(5))})
	require.NoError(t, err)
	require.Equal(t, int64(5), updated.Quantity)

	require.Len(t, appended, 2)
	require.Equal(t, event.KindQuantityChanged, appended[0].Kind)
	require.Equal(t, "Widget inventory decreased by 7 units", appended[0].Description)
	require.Equal(t, event.KindLowStock, appended[1].Kind)
	require.Equal(t, "Widget inventory below reorder level (5 units left)", appended[1].Description)

	events := log.ReadSince(0)
	require.Len(t, events, 3)
	require.Equal(t, uint64(2), appended[0].Sequence)
	require.Equal(t, uint64(3), appended[1].Sequence)
}

func TestQuantityIncreaseAboveReorderLevelDerivesOnlyChange(t *testing.T) {
	s, log := newTestStore(t)
	p, _ := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware",
		Quantity: 4, ReorderLevel: 10, Price: 499,
	})

	// Below the level both before and after: the drop derives LowStock
	// every time, the restock derives only the change.
	_, appended, err := s.UpdateProduct(p.ID, ProductPatch{Quantity: ptr(int64(3))})
	require.NoError(t, err)
	require.Len(t, appended, 2)

	_, appended, err = s.UpdateProduct(p.ID, ProductPatch{Quantity: ptr(int64(25))})
	require.NoError(t, err)
	require.Len(t, appended, 1)
	require.Equal(t, event.KindQuantityChanged, appended[0].Kind)
	require.Equal(t, "Widget inventory increased by 22 units", appended[0].Description)

	require.Equal(t, 4, log.Len())
}

func TestUpdateWithoutQuantityChangeAppendsNothing(t *testing.T) {
	s, log := newTestStore(t)
	p, _ := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware",
		Quantity: 12, ReorderLevel: 10, Price: 499,
	})

	updated, appended, err := s.UpdateProduct(p.ID, ProductPatch{
		Name:  ptr("Widget Pro"),
		Price: ptr(int64(999)),
	})
	require.NoError(t, err)
	require.Equal(t, "Widget Pro", updated.Name)
	require.Equal(t, int64(999), updated.Price)
	require.Empty(t, appended)
	require.Equal(t, 1, log.Len())
}

func TestSameQuantityPatchAppendsNothing(t *testing.T) {
	s, log := newTestStore(t)
	p, _ := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware",
		Quantity: 12, ReorderLevel: 10, Price: 499,
	})

	_, appended, err := s.UpdateProduct(p.ID, ProductPatch{Quantity: ptr(int64(12))})
	require.NoError(t, err)
	require.Empty(t, appended)
	require.Equal(t, 1, log.Len())
}

func TestUpdateUnknownProductFailsWithoutAppend(t *testing.T) {
	s, log := newTestStore(t)

	_, _, err := s.UpdateProduct(42, ProductPatch{Quantity: ptr(int64(1))})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, log.Len())
}

func TestDuplicateSKURejected(t *testing.T) {
	s, log := newTestStore(t)
	_, err := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware", Quantity: 1, ReorderLevel: 1, Price: 1,
	})
	require.NoError(t, err)

	_, err = s.CreateProduct(ProductInput{
		Name: "Other", SKU: "WID-001", Category: "Hardware", Quantity: 1, ReorderLevel: 1, Price: 1,
	})
	require.ErrorIs(t, err, ErrDuplicateSKU)
	require.Equal(t, 1, log.Len())

	p2, err := s.CreateProduct(ProductInput{
		Name: "Other", SKU: "WID-002", Category: "Hardware", Quantity: 1, ReorderLevel: 1, Price: 1,
	})
	require.NoError(t, err)

	// Moving a product onto a taken SKU is rejected too.
	_, _, err = s.UpdateProduct(p2.ID, ProductPatch{SKU: ptr("WID-001")})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestSKUChangeUpdatesIndex(t *testing.T) {
	s, _ := newTestStore(t)
	p, _ := s.CreateProduct(ProductInput{
		Name: "Widget", SKU: "WID-001", Category: "Hardware", Quantity: 1, ReorderLevel: 1, Price: 1,
	})

	_, _, err := s.UpdateProduct(p.ID, ProductPatch{SKU: ptr("WID-009")})
	require.NoError(t, err)

	_, err = s.ProductBySKU("WID-001")
	require.ErrorIs(t, err, ErrNotFound)
	got, err := s.ProductBySKU("WID-009")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
}

func TestPlaceOrderFormatsMoneyInDescription(t *testing.T) {
	s, log := newTestStore(t)

	o, err := s.PlaceOrder(OrderInput{OrderNumber: "ORD-1001", Total: 129999})
	require.NoError(t, err)
	require.Equal(t, OrderStatusPending, o.Status)

	events := log.ReadSince(0)
	require.Len(t, events, 1)
	require.Equal(t, event.KindOrderPlaced, events[0].Kind)
	require.Equal(t, "New order ORD-1001 created with total $1,299.99", events[0].Description)
}

func TestUpdateOrderStatusAppendsEvent(t *testing.T) {
	s, log := newTestStore(t)
	o, _ := s.PlaceOrder(OrderInput{OrderNumber: "ORD-1001", Total: 100})

	updated, err := s.UpdateOrderStatus(o.ID, OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, OrderStatusShipped, updated.Status)

	events := log.ReadSince(1)
	require.Len(t, events, 1)
	require.Equal(t, event.KindOrderStatusChanged, events[0].Kind)
	require.Equal(t, "Order ORD-1001 status updated to shipped", events[0].Description)

	_, err = s.UpdateOrderStatus(99, OrderStatusShipped)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordNoticeValidatesProductReference(t *testing.T) {
	s, log := newTestStore(t)

	ev, err := s.RecordNotice(NoticeInput{Description: "Reorder draft sent to supplier"})
	require.NoError(t, err)
	require.Equal(t, event.KindSupplierNotice, ev.Kind)
	require.Equal(t, uint64(1), ev.Sequence)

	_, err = s.RecordNotice(NoticeInput{Description: "bad ref", ProductID: 42})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, log.Len())
}

func TestLowStockProductsUsesStrictComparison(t *testing.T) {
	s, _ := newTestStore(t)
	s.CreateProduct(ProductInput{Name: "At Level", SKU: "A-1", Category: "c", Quantity: 10, ReorderLevel: 10, Price: 1})
	s.CreateProduct(ProductInput{Name: "Below", SKU: "B-1", Category: "c", Quantity: 9, ReorderLevel: 10, Price: 1})

	low := s.LowStockProducts()
	require.Len(t, low, 1)
	require.Equal(t, "Below", low[0].Name)
}

func TestCreateUserHashesPassword(t *testing.T) {
	s, _ := newTestStore(t)

	u, err := s.CreateUser(UserInput{Username: "ops", Password: "sup3r-secret", FullName: "Ops User"})
	require.NoError(t, err)
	require.NotEmpty(t, u.PasswordHash)
	require.NotContains(t, u.PasswordHash, "sup3r-secret")
	require.Equal(t, "user", u.Role)

	got, err := s.UserByUsername("ops")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestSeedPopulatesDemoData(t *testing.T) {
	s, log := newTestStore(t)
	require.NoError(t, Seed(s))

	require.NotEmpty(t, s.Products())
	require.NotEmpty(t, s.Orders())
	require.Greater(t, log.Len(), 0)
	_, err := s.UserByUsername("admin")
	require.NoError(t, err)
}
