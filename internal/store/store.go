package store

import (
	"context"
	"errors"
	"time"

	"kasirtoko/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
	ErrInvalidRecord = errors.New("invalid record")
)

// Catalog is the source of truth for products and their stock.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateStock(ctx context.Context, id string, qty int) (*domain.Product, error)
	// AdjustStock adds delta to the current stock, clamping the result at zero.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
}

// ReceiptSink is an append-only receipt log.
type ReceiptSink interface {
	AppendReceipt(ctx context.Context, receipt domain.Receipt) error
	// RecentReceipts returns at most limit receipts, newest first.
	RecentReceipts(ctx context.Context, limit int) ([]domain.Receipt, error)
	ListReceipts(ctx context.Context, from time.Time, to time.Time) ([]domain.Receipt, error)
}

// SaleCommitter decrements stock for every non-service line and appends the
// receipt as one atomic step. When any product cannot cover its demand a
// *domain.StockError is returned and nothing is written.
type SaleCommitter interface {
	CommitSale(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	Catalog
	ReceiptSink
	SaleCommitter
	UserStore
}
