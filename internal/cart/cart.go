package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/notify"
	"kasirtoko/backend/internal/pricing"
)

// ProductLookup is the slice of the catalog the cart needs for prices and
// advisory stock checks.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Engine holds the ordered lines of one operator's cart. It is not safe for
// concurrent use; callers serialize access per cart.
//
// Every mutation computes the next line slice from the current one and swaps
// it in only on success, so a failed operation leaves the cart untouched.
type Engine struct {
	catalog  ProductLookup
	notifier notify.Notifier
	lines    []domain.CartLine
	now      func() time.Time
}

func NewEngine(catalog ProductLookup, notifier notify.Notifier) *Engine {
	return &Engine{
		catalog:  catalog,
		notifier: notify.OrNop(notifier),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddLine adds quantity units of a product. The unit price comes from the
// pricing policy for the added quantity unless manual is set. Lines with the
// same product and effective price are merged.
func (e *Engine) AddLine(ctx context.Context, productID string, quantity int, manual *int64) ([]domain.CartLine, error) {
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if manual != nil && *manual < 0 {
		return nil, domain.NewValidationError("price", "must not be negative")
	}
	if manual != nil && *manual > domain.MaxUnitPrice {
		return nil, domain.NewValidationError("price", fmt.Sprintf("must not exceed %d", domain.MaxUnitPrice))
	}

	product, err := e.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !product.IsService {
		requested := quantityFor(e.lines, product.ID) + quantity
		if requested > product.Stock {
			return nil, e.stockFailure(ctx, product, requested)
		}
	}

	next := addLine(e.lines, product, quantity, pricing.UnitPrice(product, quantity, manual))
	if err := checkBounds(next); err != nil {
		return nil, err
	}
	e.lines = next

	e.notifier.Emit(ctx, domain.Event{
		Kind:        domain.EventProductAdded,
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   quantity,
		Message:     fmt.Sprintf("%s ditambahkan ke keranjang", product.Name),
		At:          e.now(),
	})
	return e.Lines(), nil
}

// UpdateLineQuantity sets the quantity of one line. The line is the one with
// the given effective price, or the first line of the product when price is
// nil. A quantity of zero or less removes every line of the product.
func (e *Engine) UpdateLineQuantity(ctx context.Context, productID string, quantity int, price *int64) ([]domain.CartLine, error) {
	if quantity <= 0 {
		return e.RemoveLine(productID), nil
	}

	idx := findLine(e.lines, productID, price)
	if idx < 0 {
		return nil, domain.ErrLineNotFound
	}

	product, err := e.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !product.IsService {
		requested := quantityFor(e.lines, productID) - e.lines[idx].Quantity + quantity
		if requested > product.Stock {
			return nil, e.stockFailure(ctx, product, requested)
		}
	}

	next := setQuantity(e.lines, idx, product, quantity)
	if err := checkBounds(next); err != nil {
		return nil, err
	}
	e.lines = next

	e.notifier.Emit(ctx, domain.Event{
		Kind:        domain.EventProductUpdated,
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   quantity,
		At:          e.now(),
	})
	return e.Lines(), nil
}

// RemoveLine drops every line of the product, whatever its price.
func (e *Engine) RemoveLine(productID string) []domain.CartLine {
	e.lines = removeProduct(e.lines, productID)
	return e.Lines()
}

func (e *Engine) Clear() {
	e.lines = nil
}

// Lines returns a copy of the current lines in insertion order.
func (e *Engine) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) Len() int {
	return len(e.lines)
}

func (e *Engine) Subtotal() int64 {
	return subtotal(e.lines)
}

func (e *Engine) QuantityFor(productID string) int {
	return quantityFor(e.lines, productID)
}

func (e *Engine) product(ctx context.Context, productID string) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.NewValidationError("product_id", "is required")
	}
	product, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}
	if product == nil {
		return domain.Product{}, fmt.Errorf("lookup product %s: %w", productID, errors.New("missing product"))
	}
	return *product, nil
}

func (e *Engine) stockFailure(ctx context.Context, product domain.Product, requested int) error {
	stockErr := &domain.StockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Available:   product.Stock,
		Requested:   requested,
	}
	e.notifier.Emit(ctx, domain.StockEvent(stockErr, e.now()))
	return stockErr
}
