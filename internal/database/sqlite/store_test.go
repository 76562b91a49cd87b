package sqlite

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
	"restaurant-ordering/internal/services/order"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testCatalog() *models.Catalog {
	luxuryFloor := dec("0")
	return &models.Catalog{
		Branches: []models.Branch{{
			ID: "b1", RestaurantID: "r1", Code: "dt", Name: "Downtown",
			IsActive: true, AcceptOrders: true, Timezone: "UTC",
			MinimumOrderAmount:      dec("100"),
			ServiceChargePercentage: dec("10"),
		}},
		Tables: []models.Table{
			{ID: "t1", BranchID: "b1", Number: "12", IsActive: true},
			{ID: "t2", BranchID: "b1", Number: "14", IsActive: true},
		},
		MenuItems: []models.MenuItem{
			{
				ID: "pizza", RestaurantID: "r1", Name: "Margherita", Price: dec("150"), IsAvailable: true,
				Variants: []models.Variant{{Name: "Regular", Price: dec("150")}, {Name: "Large", Price: dec("180")}},
				Addons:   []models.Addon{{Name: "Extra Cheese", Price: dec("20")}},
			},
			{ID: "soda", RestaurantID: "r1", Name: "Soda", Price: dec("50"), IsAvailable: true},
		},
		TaxRules: []models.TaxRule{
			{ID: "gst", RestaurantID: "r1", Name: "GST", Type: models.TaxPercentage, Value: dec("5"),
				ApplicableOn: models.ApplySubtotal, IsActive: true},
			{ID: "luxury", RestaurantID: "r1", Position: 1, Name: "Luxury", Type: models.TaxPercentage, Value: dec("10"),
				ApplicableOn: models.ApplyAfterOtherTaxes, MinOrderAmount: &luxuryFloor, IsActive: true},
			{ID: "off", RestaurantID: "r1", Position: 2, Name: "Retired", Type: models.TaxFixed, Value: dec("99"),
				ApplicableOn: models.ApplySubtotal, IsActive: false},
		},
		Sessions: []models.CustomerSession{{ID: "s1", TableID: "t1", Status: models.SessionActive, StartedAt: fixedNow}},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logger.New("order-service", "error", io.Discard)
	store, err := Open(filepath.Join(t.TempDir(), "orders.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Seed(context.Background(), testCatalog()))
	return store
}

func newTestService(t *testing.T, store *Store) *order.Service {
	return order.NewService(store, nil, logger.New("order-service", "error", io.Discard), order.Options{
		Clock:              func() time.Time { return fixedNow },
		ResolveConcurrency: 4,
	})
}

func request(table string) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		BranchID:  "b1",
		TableID:   table,
		OrderType: "dine-in",
		Items: []models.ItemRequest{
			{MenuItemID: "pizza", Quantity: 1, Addons: []models.AddonRequest{{Name: "Extra Cheese", Price: dec("20")}}},
			{MenuItemID: "soda", Quantity: 1, Customizations: []models.Customization{{Name: "ice", Value: "none"}}},
		},
	}
}

func TestSeed_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	branch, err := store.GetBranch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, branch.ServiceChargePercentage.Equal(dec("10")))

	item, err := store.GetMenuItem(ctx, "pizza")
	require.NoError(t, err)
	require.Len(t, item.Variants, 2)
	assert.True(t, item.Variants[1].Price.Equal(dec("180")))
	assert.Nil(t, item.DiscountPrice)

	rules, err := store.ListTaxRules(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rules, 2, "inactive rules are not listed")
	assert.Equal(t, "gst", rules[0].ID)
	require.NotNil(t, rules[1].MinOrderAmount)

	_, err = store.GetTable(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrTableNotFound)

	// seeding twice is an upsert
	require.NoError(t, store.Seed(ctx, testCatalog()))
}

func TestStore_OrderLifecycle(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, request("t1"), "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-DT-20260314-0001", created.OrderNumber)
	require.NotNil(t, created.SessionID)
	assert.Equal(t, "s1", *created.SessionID)

	loaded, err := store.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, loaded.TotalAmount.Equal(dec("276.10")), "total %s", loaded.TotalAmount)
	assert.True(t, loaded.Balanced())
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "pizza", loaded.Items[0].MenuItemID)
	assert.Equal(t, "none", loaded.Items[1].Customizations[0].Value)
	require.Len(t, loaded.Taxes, 2)

	table, err := store.GetTable(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, table.Status)

	_, err = svc.CreateOrder(ctx, request("t1"), "")
	assert.ErrorIs(t, err, models.ErrTableOccupied)

	for _, status := range []string{"confirmed", "preparing", "ready"} {
		_, err := svc.UpdateStatus(ctx, created.ID, status, "kitchen", "")
		require.NoError(t, err, status)
	}
	_, err = svc.UpdateItemStatus(ctx, created.ID, loaded.Items[0].ID, "prepared", "")
	require.NoError(t, err)
	_, err = svc.AssignStaff(ctx, created.ID, "st-1", "Ravi", "")
	require.NoError(t, err)
	_, err = svc.UpdatePayment(ctx, created.ID, "paid", "upi", "")
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, created.ID, "completed", "cashier", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	loaded, err = store.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, loaded.Status)
	assert.Equal(t, models.PaymentPaid, loaded.PaymentStatus)
	require.NotNil(t, loaded.PaymentMethod)
	assert.Equal(t, models.PaymentUPI, *loaded.PaymentMethod)
	assert.Equal(t, "Ravi", *loaded.AssignedStaffName)
	assert.Equal(t, models.ItemPrepared, loaded.Items[0].Status)
	require.NotNil(t, loaded.ConfirmedAt)
	require.NotNil(t, loaded.CompletedAt)

	table, err = store.GetTable(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)

	history, err := svc.History(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 5)

	_, err = svc.UpdatePayment(ctx, created.ID, "refunded", "", "")
	assert.ErrorIs(t, err, models.ErrOrderClosed)

	// the table can take a new order once the previous one is completed
	next, err := svc.CreateOrder(ctx, request("t1"), "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-DT-20260314-0002", next.OrderNumber)
}

func TestStore_GuardedUpdates(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, request("t2"), "")
	require.NoError(t, err)

	stale := &models.StatusUpdate{
		Order:       created,
		FromStatus:  models.StatusConfirmed,
		FromPayment: models.PaymentPending,
		Change:      models.StatusChange{ID: "c-stale", OrderID: created.ID, To: models.StatusPreparing, ChangedAt: fixedNow},
	}
	assert.ErrorIs(t, store.UpdateStatus(ctx, stale), models.ErrConcurrentModification)

	missing := &models.FieldUpdate{OrderID: "nope", ExpectedStatus: models.StatusPending, UpdatedAt: fixedNow}
	assert.ErrorIs(t, store.UpdateFields(ctx, missing), models.ErrOrderNotFound)

	status := models.ItemServed
	badItem := &models.FieldUpdate{OrderID: created.ID, ExpectedStatus: models.StatusPending, ItemID: "nope", ItemStatus: &status, UpdatedAt: fixedNow}
	assert.ErrorIs(t, store.UpdateFields(ctx, badItem), models.ErrItemNotFound)
}

func TestStore_ConcurrentOrdersForOneTable(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		occupied int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), request("t2"), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case models.KindOf(err) == models.KindConflict:
				occupied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, occupied)
}

func TestStore_OrderNumbersUniqueAcrossRestaurants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// a second restaurant whose branch reuses the code "dt"
	require.NoError(t, store.Seed(ctx, &models.Catalog{
		Branches: []models.Branch{{
			ID: "b9", RestaurantID: "r9", Code: "dt", Name: "Harbour",
			IsActive: true, AcceptOrders: true, Timezone: "UTC",
		}},
		Tables:    []models.Table{{ID: "t9", BranchID: "b9", Number: "1", IsActive: true}},
		MenuItems: []models.MenuItem{{ID: "r9-tea", RestaurantID: "r9", Name: "Tea", Price: dec("30"), IsAvailable: true}},
	}))
	svc := newTestService(t, store)

	first, err := svc.CreateOrder(ctx, request("t1"), "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-DT-20260314-0001", first.OrderNumber)

	other, err := svc.CreateOrder(ctx, &models.CreateOrderRequest{
		BranchID: "b9",
		TableID:  "t9",
		Items:    []models.ItemRequest{{MenuItemID: "r9-tea", Quantity: 2}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-DT-20260314-0002", other.OrderNumber)

	third, err := svc.CreateOrder(ctx, request("t2"), "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-DT-20260314-0003", third.OrderNumber)
}

func TestStore_DuplicateOrderNamesTheIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := newTestService(t, store).CreateOrder(ctx, request("t1"), "")
	require.NoError(t, err)

	err = store.duplicateOrder(ctx, &models.Order{OrderNumber: created.OrderNumber, TableID: "t2"})
	assert.ErrorIs(t, err, models.ErrOrderNumberCollision)
	assert.True(t, models.IsRetryable(err))

	err = store.duplicateOrder(ctx, &models.Order{OrderNumber: "ORD-DT-20260314-0099", TableID: "t1"})
	assert.ErrorIs(t, err, models.ErrTableOccupied)
}

func TestSeed_RejectsInvalidCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	badZone := testCatalog()
	badZone.Branches[0].Timezone = "Mars/Olympus"
	assert.Error(t, store.Seed(ctx, badZone))

	fractionalCent := testCatalog()
	fractionalCent.MenuItems[0].Variants[1].Price = dec("180.005")
	assert.Error(t, store.Seed(ctx, fractionalCent))

	item, err := store.GetMenuItem(ctx, "pizza")
	require.NoError(t, err)
	assert.True(t, item.Variants[1].Price.Equal(dec("180")), "rejected seed must not write")
}
