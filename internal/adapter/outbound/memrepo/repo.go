// Package memrepo provides the in-memory stores backing the demo REST API.
// NOTE: data is not persistent and is lost on restart.
package memrepo

import (
	"sort"
	"strings"
	"sync"

	"github.com/nlbridge/nlbridge/internal/domain"
)

// ProductStore is a mutex-guarded in-memory product catalog with
// sequential IDs.
type ProductStore struct {
	mu     sync.RWMutex
	items  map[int64]domain.Product
	nextID int64
}

// NewProductStore creates a store pre-populated with the demo catalog.
func NewProductStore() *ProductStore {
	s := &ProductStore{items: make(map[int64]domain.Product), nextID: 1}
	for _, p := range []domain.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: 999.99, Stock: 50},
		{Name: "Mouse", Description: "Wireless ergonomic mouse", Price: 49.99, Stock: 200},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: 129.99, Stock: 150},
		{Name: "Monitor", Description: "27-inch 4K monitor", Price: 599.99, Stock: 30},
		{Name: "Headphones", Description: "Noise cancelling headphones", Price: 299.99, Stock: 75},
	} {
		s.save(p)
	}
	return s
}

func (s *ProductStore) save(p domain.Product) domain.Product {
	if p.ID == 0 {
		p.ID = s.nextID
		s.nextID++
	}
	s.items[p.ID] = p
	return p
}

// List returns every product ordered by ID.
func (s *ProductStore) List() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Product, 0, len(s.items))
	for _, p := range s.items {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Find returns the product with the given ID.
func (s *ProductStore) Find(id int64) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	return p, ok
}

// Search returns products whose name contains the keyword,
// case-insensitively, ordered by ID.
func (s *ProductStore) Search(name string) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(name)
	var list []domain.Product
	for _, p := range s.items {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Create stores a new product and assigns it the next sequential ID.
func (s *ProductStore) Create(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = 0
	return s.save(p)
}

// Update replaces the product with the given ID. Returns false when the ID
// is unknown.
func (s *ProductStore) Update(id int64, p domain.Product) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.Product{}, false
	}
	p.ID = id
	s.items[id] = p
	return p, true
}

// Delete removes the product with the given ID.
func (s *ProductStore) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// OrderStore is a mutex-guarded in-memory order book. Order IDs start at
// 101 so they do not read like product IDs in demo conversations.
type OrderStore struct {
	mu     sync.RWMutex
	items  map[int64]domain.Order
	nextID int64
}

// NewOrderStore creates a store pre-populated with demo orders.
func NewOrderStore() *OrderStore {
	s := &OrderStore{items: make(map[int64]domain.Order), nextID: 101}
	for _, o := range []domain.Order{
		{CustomerID: 42, ProductID: 1, Quantity: 2, Status: "pending", Total: 1999.98},
		{CustomerID: 42, ProductID: 2, Quantity: 1, Status: "shipped", Total: 49.99},
		{CustomerID: 55, ProductID: 3, Quantity: 3, Status: "delivered", Total: 389.97},
		{CustomerID: 55, ProductID: 4, Quantity: 1, Status: "pending", Total: 599.99},
		{CustomerID: 77, ProductID: 1, Quantity: 1, Status: "cancelled", Total: 999.99},
	} {
		s.save(o)
	}
	return s
}

func (s *OrderStore) save(o domain.Order) domain.Order {
	if o.ID == 0 {
		o.ID = s.nextID
		s.nextID++
	}
	s.items[o.ID] = o
	return o
}

// List returns orders matching the optional customerID and status filters,
// ordered by ID. Zero customerID and empty status match everything.
func (s *OrderStore) List(customerID int64, status string) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []domain.Order
	for _, o := range s.items {
		if customerID != 0 && o.CustomerID != customerID {
			continue
		}
		if status != "" && !strings.EqualFold(o.Status, status) {
			continue
		}
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Find returns the order with the given ID.
func (s *OrderStore) Find(id int64) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.items[id]
	return o, ok
}

// Create stores a new order and assigns it the next sequential ID.
func (s *OrderStore) Create(o domain.Order) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = 0
	return s.save(o)
}

// UpdateStatus changes the status of an existing order.
func (s *OrderStore) UpdateStatus(id int64, status string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.items[id]
	if !ok {
		return domain.Order{}, false
	}
	o.Status = status
	s.items[id] = o
	return o, true
}

// Delete removes the order with the given ID.
func (s *OrderStore) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}
