package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"restaurant-ordering/internal/models"
)

// memStore is an in-memory Store with the same commit-time guarantees as the SQL stores
type memStore struct {
	mu       sync.Mutex
	branches map[string]*models.Branch
	tables   map[string]*models.Table
	items    map[string]*models.MenuItem
	rules    []models.TaxRule
	sessions map[string]*models.CustomerSession
	orders   map[string]*models.Order
	log      map[string][]models.StatusChange
	counters map[string]int64
	pingErr  error
}

func newMemStore() *memStore {
	return &memStore{
		branches: map[string]*models.Branch{},
		tables:   map[string]*models.Table{},
		items:    map[string]*models.MenuItem{},
		sessions: map[string]*models.CustomerSession{},
		orders:   map[string]*models.Order{},
		log:      map[string][]models.StatusChange{},
		counters: map[string]int64{},
	}
}

// clone deep-copies an order so callers never share slices with the store
func clone(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.Taxes = append([]models.TaxLine(nil), o.Taxes...)
	return &c
}

func (s *memStore) GetBranch(_ context.Context, id string) (*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, models.Errorf(models.ErrBranchNotFound, "branch %s not found", id)
	}
	c := *b
	return &c, nil
}

func (s *memStore) GetTable(_ context.Context, id string) (*models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return nil, models.Errorf(models.ErrTableNotFound, "table %s not found", id)
	}
	c := *t
	return &c, nil
}

func (s *memStore) GetMenuItem(_ context.Context, id string) (*models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, models.Errorf(models.ErrMenuItemNotFound, "menu item %s not found", id)
	}
	c := *it
	return &c, nil
}

func (s *memStore) ListTaxRules(_ context.Context, restaurantID string) ([]models.TaxRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TaxRule
	for _, r := range s.rules {
		if r.RestaurantID == restaurantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) HasActiveOrder(_ context.Context, tableID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeOn(tableID), nil
}

func (s *memStore) activeOn(tableID string) bool {
	for _, o := range s.orders {
		if o.TableID == tableID && o.Status.IsActive() {
			return true
		}
	}
	return false
}

func (s *memStore) CreateOrder(_ context.Context, d *models.OrderDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeOn(d.Order.TableID) {
		return models.Errorf(models.ErrTableOccupied, "table %s already has an active order", d.Order.TableID)
	}

	key := fmt.Sprintf("%s/%s", d.NumberPrefix, d.BusinessDay.Format("2006-01-02"))
	s.counters[key]++
	d.Order.OrderNumber = models.GenerateOrderNumber(d.NumberPrefix, d.BusinessDay, s.counters[key])

	for _, sess := range s.sessions {
		if sess.TableID == d.Order.TableID && sess.Status == models.SessionActive {
			id, orderID := sess.ID, d.Order.ID
			sess.OrderID = &orderID
			d.Order.SessionID = &id
			break
		}
	}
	if t, ok := s.tables[d.Order.TableID]; ok {
		t.Status = models.TableOccupied
	}

	s.orders[d.Order.ID] = clone(d.Order)
	s.log[d.Order.ID] = append(s.log[d.Order.ID], d.Change)
	return nil
}

func (s *memStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.Errorf(models.ErrOrderNotFound, "order %s not found", id)
	}
	return clone(o), nil
}

func (s *memStore) ListStatusChanges(_ context.Context, orderID string) ([]models.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatusChange(nil), s.log[orderID]...), nil
}

func (s *memStore) UpdateStatus(_ context.Context, u *models.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[u.Order.ID]
	if !ok {
		return models.Errorf(models.ErrOrderNotFound, "order %s not found", u.Order.ID)
	}
	if cur.Status != u.FromStatus || cur.PaymentStatus != u.FromPayment {
		return models.ErrConcurrentModification
	}

	s.orders[u.Order.ID] = clone(u.Order)
	if u.ReleaseTable {
		if t, ok := s.tables[u.Order.TableID]; ok {
			t.Status = models.TableAvailable
		}
	}
	if u.CloseSession && u.Order.SessionID != nil {
		if sess, ok := s.sessions[*u.Order.SessionID]; ok {
			sess.Status = models.SessionClosed
		}
	}
	s.log[u.Order.ID] = append(s.log[u.Order.ID], u.Change)
	return nil
}

func (s *memStore) UpdateFields(_ context.Context, u *models.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[u.OrderID]
	if !ok {
		return models.Errorf(models.ErrOrderNotFound, "order %s not found", u.OrderID)
	}
	if cur.Status != u.ExpectedStatus {
		return models.ErrConcurrentModification
	}
	if u.PaymentStatus != nil {
		cur.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentMethod != nil {
		cur.PaymentMethod = u.PaymentMethod
	}
	if u.StaffID != nil {
		cur.AssignedStaffID = u.StaffID
		cur.AssignedStaffName = u.StaffName
	}
	if u.ItemStatus != nil {
		item, ok := cur.Item(u.ItemID)
		if !ok {
			return models.ErrItemNotFound
		}
		item.Status = *u.ItemStatus
	}
	cur.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []models.EventName {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventName, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int { return &n }
