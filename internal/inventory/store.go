package inventory

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stockpulse/stockpulse/internal/event"
)

// Store is the arena-style in-memory state store. Entities are keyed by
// dense integer ids whose counters are owned exclusively by the store.
// One mutex serializes every mutation together with its event appends:
// no caller can observe a state change before the corresponding events
// are in the log, and two mutations never interleave their mutate/append
// steps.
type Store struct {
	log     *event.Log
	printer *message.Printer
	now     func() time.Time

	mu            sync.Mutex
	products      map[int64]Product
	skuIndex      map[string]int64
	orders        map[int64]Order
	users         map[int64]User
	nextProductID int64
	nextOrderID   int64
	nextUserID    int64
}

// NewStore constructs an empty store appending to log.
func NewStore(log *event.Log) *Store {
	return &Store{
		log:      log,
		printer:  message.NewPrinter(language.English),
		now:      time.Now,
		products: make(map[int64]Product),
		skuIndex: make(map[string]int64),
		orders:   make(map[int64]Order),
		users:    make(map[int64]User),
	}
}

// CreateProduct stores a new product and appends the Created event.
func (s *Store) CreateProduct(in ProductInput) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.skuIndex[in.SKU]; exists {
		return Product{}, ErrDuplicateSKU
	}
	s.nextProductID++
	p := Product{
		ID:           s.nextProductID,
		Name:         in.Name,
		SKU:          in.SKU,
		Category:     in.Category,
		Quantity:     in.Quantity,
		ReorderLevel: in.ReorderLevel,
		Price:        in.Price,
	}
	s.products[p.ID] = p
	s.skuIndex[p.SKU] = p.ID
	s.log.Append(event.KindCreated, p.ID,
		s.printer.Sprintf("New product %s added to inventory", p.Name))
	return p, nil
}

// UpdateProduct applies partial field changes atomically. A quantity
// change appends QuantityChanged and, when the new quantity ends up below
// the product's reorder level, LowStock immediately after. The appended
// events are returned so callers can react (e.g. enqueue reorder drafts)
// without re-deriving them.
func (s *Store) UpdateProduct(id int64, patch ProductPatch) (Product, []event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, nil, ErrNotFound
	}
	oldQuantity := p.Quantity

	if patch.SKU != nil && *patch.SKU != p.SKU {
		if _, exists := s.skuIndex[*patch.SKU]; exists {
			return Product{}, nil, ErrDuplicateSKU
		}
		delete(s.skuIndex, p.SKU)
		p.SKU = *patch.SKU
		s.skuIndex[p.SKU] = p.ID
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.ReorderLevel != nil {
		p.ReorderLevel = *patch.ReorderLevel
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	s.products[id] = p

	var appended []event.Event
	if patch.Quantity != nil && p.Quantity != oldQuantity {
		delta := p.Quantity - oldQuantity
		direction := "increased"
		if delta < 0 {
			direction = "decreased"
			delta = -delta
		}
		appended = append(appended, s.log.Append(event.KindQuantityChanged, p.ID,
			s.printer.Sprintf("%s inventory %s by %d units", p.Name, direction, delta)))
		if p.Quantity < p.ReorderLevel {
			appended = append(appended, s.log.Append(event.KindLowStock, p.ID,
				s.printer.Sprintf("%s inventory below reorder level (%d units left)", p.Name, p.Quantity)))
		}
	}
	return p, appended, nil
}

// PlaceOrder stores a new order and appends the OrderPlaced event.
func (s *Store) PlaceOrder(in OrderInput) (Order, error) {
	status := OrderStatus(in.Status)
	if in.Status == "" {
		status = OrderStatusPending
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrderID++
	o := Order{
		ID:          s.nextOrderID,
		OrderNumber: in.OrderNumber,
		Status:      status,
		Total:       in.Total,
		PlacedAt:    s.now().UTC(),
	}
	s.orders[o.ID] = o
	s.log.Append(event.KindOrderPlaced, 0,
		s.printer.Sprintf("New order %s created with total %s", o.OrderNumber, s.money(o.Total)))
	return o, nil
}

// UpdateOrderStatus moves an order to status and appends
// OrderStatusChanged.
func (s *Store) UpdateOrderStatus(id int64, status OrderStatus) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	s.log.Append(event.KindOrderStatusChanged, 0,
		s.printer.Sprintf("Order %s status updated to %s", o.OrderNumber, status))
	return o, nil
}

// RecordNotice appends a free-form activity event, defaulting to a
// supplier notice. Used by the activities endpoint and the reorder
// worker's write-back path.
func (s *Store) RecordNotice(in NoticeInput) (event.Event, error) {
	kind := event.KindSupplierNotice
	if in.Type != "" {
		kind = event.Kind(in.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ProductID != 0 {
		if _, ok := s.products[in.ProductID]; !ok {
			return event.Event{}, ErrNotFound
		}
	}
	return s.log.Append(kind, in.ProductID, in.Description), nil
}

// CreateUser stores a new account with a bcrypt password hash.
func (s *Store) CreateUser(in UserInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	role := in.Role
	if role == "" {
		role = "user"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := User{
		ID:           s.nextUserID,
		Username:     in.Username,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Role:         role,
	}
	s.users[u.ID] = u
	return u, nil
}

// UserByUsername looks an account up by username.
func (s *Store) UserByUsername(username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// Product returns one product by id.
func (s *Store) Product(id int64) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// ProductBySKU returns one product by SKU.
func (s *Store) ProductBySKU(sku string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.skuIndex[sku]
	if !ok {
		return Product{}, ErrNotFound
	}
	return s.products[id], nil
}

// Products returns all products ordered by id.
func (s *Store) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LowStockProducts returns products strictly below their reorder level.
func (s *Store) LowStockProducts() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	for _, p := range s.products {
		if p.Quantity < p.ReorderLevel {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order returns one order by id.
func (s *Store) Order(id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// Orders returns all orders ordered by id.
func (s *Store) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingOrdersCount counts orders still in the pending state.
func (s *Store) PendingOrdersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if o.Status == OrderStatusPending {
			n++
		}
	}
	return n
}

func (s *Store) money(cents int64) string {
	return s.printer.Sprintf("$%.2f", float64(cents)/100)
}
