package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	receipts        []domain.Receipt
	usersByUsername map[string]domain.UserAccount
}

// New returns an empty-user store holding products. Products without an id
// get one assigned.
func New(products ...domain.Product) *Store {
	s := &Store{
		products:        make(map[string]domain.Product, len(products)),
		receipts:        make([]domain.Receipt, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
	}
	for _, p := range products {
		if p.ID == "" {
			p.ID = xid.New("PRD")
		}
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.SellPrice < 0 || product.CostPrice < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("PRD")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.Barcode != "" {
		for _, p := range s.products {
			if p.Barcode == product.Barcode {
				return nil, store.ErrConflict
			}
		}
	}
	if product.IsService {
		product.Stock = 0
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateStock(_ context.Context, id string, qty int) (*domain.Product, error) {
	if qty < 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Stock = qty
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Stock = max(0, product.Stock+delta)
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) CommitSale(_ context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if receipt.ID == "" || len(receipt.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasReceiptLocked(receipt.ID) {
		return nil, store.ErrConflict
	}

	demand := receipt.StockDemand()
	for id, qty := range demand {
		product, ok := s.products[id]
		if !ok {
			return nil, store.ErrNotFound
		}
		if product.Stock < qty {
			return nil, &domain.StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   qty,
			}
		}
	}
	for _, line := range receipt.Lines {
		if _, ok := s.products[line.Product.ID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	for id, qty := range demand {
		product := s.products[id]
		product.Stock -= qty
		s.products[id] = product
	}

	stored := receipt.Clone()
	s.receipts = append(s.receipts, stored)
	committed := stored.Clone()
	return &committed, nil
}

func (s *Store) AppendReceipt(_ context.Context, receipt domain.Receipt) error {
	if receipt.ID == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasReceiptLocked(receipt.ID) {
		return store.ErrConflict
	}
	s.receipts = append(s.receipts, receipt.Clone())
	return nil
}

func (s *Store) RecentReceipts(_ context.Context, limit int) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.receipts) {
		limit = len(s.receipts)
	}
	out := make([]domain.Receipt, 0, limit)
	for i := len(s.receipts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.receipts[i].Clone())
	}
	return out, nil
}

func (s *Store) ListReceipts(_ context.Context, from time.Time, to time.Time) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Receipt, 0, 32)
	for _, r := range s.receipts {
		if r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) hasReceiptLocked(id string) bool {
	for _, r := range s.receipts {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
