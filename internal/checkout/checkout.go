package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kasirtoko/backend/internal/cart"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/notify"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

const DefaultPaymentMethod = "cash"

var paymentMethods = map[string]struct{}{
	"cash":     {},
	"card":     {},
	"qris":     {},
	"ewallet":  {},
	"transfer": {},
}

// ProductSource resolves the current catalog entries for a set of ids.
type ProductSource interface {
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Processor turns a cart into a committed receipt.
type Processor struct {
	catalog   ProductSource
	committer store.SaleCommitter
	notifier  notify.Notifier
	now       func() time.Time
	newID     func() string
}

func NewProcessor(catalog ProductSource, committer store.SaleCommitter, notifier notify.Notifier) *Processor {
	return &Processor{
		catalog:   catalog,
		committer: committer,
		notifier:  notify.OrNop(notifier),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return xid.New("INV") },
	}
}

// Checkout prices the cart, re-validates stock against the catalog and
// commits the sale. On success the cart is cleared. On any failure the cart,
// the catalog and the receipt log are left as they were.
func (p *Processor) Checkout(ctx context.Context, c *cart.Engine, discount domain.DiscountSpec, paymentMethod string) (*domain.Receipt, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		p.notifier.Emit(ctx, domain.Event{Kind: domain.EventCartEmpty, Message: "keranjang kosong", At: p.now()})
		return nil, domain.ErrEmptyCart
	}

	method, err := normalizePaymentMethod(paymentMethod)
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.Total()
	}

	applied, err := ApplyDiscount(subtotal, discount)
	if err != nil {
		p.notifier.Emit(ctx, domain.Event{Kind: domain.EventInvalidDiscount, Message: err.Error(), At: p.now()})
		return nil, err
	}

	products, err := p.catalog.GetProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, p.fail(ctx, fmt.Errorf("load cart products: %w", err))
	}

	receipt := domain.Receipt{
		ID:              p.newID(),
		Lines:           make([]domain.ReceiptLine, 0, len(lines)),
		Subtotal:        subtotal,
		Discount:        discount,
		DiscountApplied: applied,
		Total:           max(0, subtotal-applied),
		PaymentMethod:   method,
		CreatedAt:       p.now(),
	}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, p.fail(ctx, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound))
		}
		lineProfit := (line.EffectivePrice() - product.CostPrice) * int64(line.Quantity)
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			Product:     product,
			Quantity:    line.Quantity,
			UnitPrice:   line.EffectivePrice(),
			ManualPrice: line.IsManual(),
			LineTotal:   line.Total(),
			LineProfit:  lineProfit,
		})
		receipt.Profit += lineProfit
	}

	if err := checkStock(receipt, products); err != nil {
		return nil, p.fail(ctx, err)
	}

	committed, err := p.committer.CommitSale(ctx, receipt)
	if err != nil {
		var stockErr *domain.StockError
		if !errors.As(err, &stockErr) {
			err = fmt.Errorf("commit sale: %w", err)
		}
		return nil, p.fail(ctx, err)
	}

	c.Clear()
	p.notifier.Emit(ctx, domain.Event{
		Kind:      domain.EventTransactionCommitted,
		ReceiptID: committed.ID,
		Total:     committed.Total,
		Profit:    committed.Profit,
		Message:   "transaksi berhasil",
		At:        p.now(),
	})
	return committed, nil
}

// fail reports a checkout failure to the notifier and returns err as is.
func (p *Processor) fail(ctx context.Context, err error) error {
	var stockErr *domain.StockError
	if errors.As(err, &stockErr) {
		p.notifier.Emit(ctx, domain.StockEvent(stockErr, p.now()))
		return err
	}
	p.notifier.Emit(ctx, domain.Event{Kind: domain.EventCheckoutFailed, Message: err.Error(), At: p.now()})
	return err
}

// checkStock sums demand per product across lines, since one product can
// appear at several prices.
func checkStock(receipt domain.Receipt, products map[string]domain.Product) error {
	demand := receipt.StockDemand()
	for _, line := range receipt.Lines {
		product := products[line.Product.ID]
		if product.IsService {
			continue
		}
		if demand[product.ID] > product.Stock {
			return &domain.StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   demand[product.ID],
			}
		}
	}
	return nil
}

func productIDs(lines []domain.CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func normalizePaymentMethod(method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return DefaultPaymentMethod, nil
	}
	if _, ok := paymentMethods[method]; !ok {
		return "", domain.NewValidationError("payment_method", "unsupported payment method "+method)
	}
	return method, nil
}
