package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kasirtoko/backend/internal/cache"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/notify"
	"kasirtoko/backend/internal/report"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/store/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Emit(_ context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recorder) {
	t.Helper()
	repo := memory.New(memory.SeedProducts()...)
	reports := report.NewEngine(repo, repo, cache.NoopSummaryCache{}, report.Options{Location: time.UTC}, zerolog.Nop())
	rec := &recorder{}
	return New(repo, reports, rec, zerolog.Nop()), repo, rec
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func cashierContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "kasir", Role: "cashier"})
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestTerminalsHaveIndependentCarts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P002", Quantity: 2}); err != nil {
		t.Fatalf("add to T1: %v", err)
	}
	view, err := svc.AddToCart(ctx, "T2", domain.AddLineRequest{ProductID: "P003", Quantity: 1})
	if err != nil {
		t.Fatalf("add to T2: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != "P003" {
		t.Fatalf("T2 cart leaked lines: %+v", view.Lines)
	}

	t1, err := svc.Cart(ctx, "T1")
	if err != nil {
		t.Fatalf("cart T1: %v", err)
	}
	if t1.Subtotal != 6000 || t1.Items != 2 || t1.Lines[0].Name != "Pulpen Standar" {
		t.Fatalf("unexpected T1 view %+v", t1)
	}
}

func TestAddToCartByBarcodeAndUnit(t *testing.T) {
	svc, _, _ := newTestService(t)

	view, err := svc.AddToCart(cashierContext(), "T1", domain.AddLineRequest{
		Barcode:  "8991389200067",
		Quantity: 1,
		Unit:     "karton",
	})
	if err != nil {
		t.Fatalf("add by barcode: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != "P007" || view.Lines[0].Quantity != 5 {
		t.Fatalf("expected 5 packs of P007, got %+v", view.Lines)
	}

	_, err = svc.AddToCart(cashierContext(), "T1", domain.AddLineRequest{ProductID: "P002", Quantity: 1, Unit: "karton"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unavailable unit, got %v", err)
	}
}

func TestAddToCartValidatesRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	cases := []struct {
		name     string
		terminal string
		req      domain.AddLineRequest
	}{
		{name: "missing product", terminal: "T1", req: domain.AddLineRequest{Quantity: 1}},
		{name: "zero quantity", terminal: "T1", req: domain.AddLineRequest{ProductID: "P002"}},
		{name: "negative price", terminal: "T1", req: domain.AddLineRequest{ProductID: "P002", Quantity: 1, Price: int64Ptr(-1)}},
		{name: "price above limit", terminal: "T1", req: domain.AddLineRequest{ProductID: "P001", Quantity: 2, Price: int64Ptr(domain.MaxUnitPrice + 1)}},
		{name: "bad terminal", terminal: "a b", req: domain.AddLineRequest{ProductID: "P002", Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddToCart(ctx, tc.terminal, tc.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	_, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P404", Quantity: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateAndRemoveCartLines(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P001", Quantity: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.UpdateCartLine(ctx, "T1", "P001", domain.UpdateLineRequest{Quantity: 200})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Lines[0].Price.Amount != 285 || view.Subtotal != 57000 {
		t.Fatalf("expected tier price 285, got %+v", view)
	}

	view, err = svc.RemoveFromCart(ctx, "T1", "P001")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Lines) != 0 || view.Subtotal != 0 {
		t.Fatalf("expected empty cart, got %+v", view)
	}

	_, err = svc.UpdateCartLine(ctx, "T1", "P002", domain.UpdateLineRequest{Quantity: 3})
	if !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected line not found, got %v", err)
	}
}

func TestUpdateCartLineRejectsOversizedQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P001", Quantity: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := svc.UpdateCartLine(ctx, "T1", "P001", domain.UpdateLineRequest{Quantity: domain.MaxLineQuantity + 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.UpdateCartLine(ctx, "T1", "P001", domain.UpdateLineRequest{Quantity: 1, Price: int64Ptr(domain.MaxUnitPrice + 1)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for price selector, got %v", err)
	}

	view, err := svc.Cart(ctx, "T1")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	if view.Items != 10 || view.Subtotal != 3000 {
		t.Fatalf("rejected updates must keep the cart, got %+v", view)
	}
}

func TestCheckoutCommitsAndClearsTerminalCart(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := cashierContext()

	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P004", Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P002", Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	receipt, err := svc.Checkout(ctx, "T1", domain.CheckoutRequest{
		Discount:      domain.DiscountSpec{Kind: domain.DiscountPercent, Value: 10},
		PaymentMethod: "qris",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if receipt.Subtotal != 116000 || receipt.DiscountApplied != 11600 || receipt.Total != 104400 {
		t.Fatalf("unexpected totals %+v", receipt)
	}
	if receipt.PaymentMethod != "qris" {
		t.Fatalf("expected qris, got %s", receipt.PaymentMethod)
	}

	view, err := svc.Cart(ctx, "T1")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected cleared cart, got %+v", view.Lines)
	}

	paper, _ := repo.GetProduct(context.Background(), "P004")
	if paper.Stock != 18 {
		t.Fatalf("expected stock 18, got %d", paper.Stock)
	}

	summary, err := svc.DailySummary(ctx, receipt.CreatedAt.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Transactions != 1 || summary.Revenue != 104400 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	kinds := rec.kinds()
	if kinds[len(kinds)-1] != domain.EventTransactionCommitted {
		t.Fatalf("expected last event to be committed, got %v", kinds)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Checkout(cashierContext(), "T9", domain.CheckoutRequest{})
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestCheckoutSeesStockTakenByAnotherTerminal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	if _, err := svc.AddToCart(ctx, "T1", domain.AddLineRequest{ProductID: "P008", Quantity: 10}); err != nil {
		t.Fatalf("add T1: %v", err)
	}
	if _, err := svc.AddToCart(ctx, "T2", domain.AddLineRequest{ProductID: "P008", Quantity: 10}); err != nil {
		t.Fatalf("add T2: %v", err)
	}
	if _, err := svc.Checkout(ctx, "T1", domain.CheckoutRequest{}); err != nil {
		t.Fatalf("checkout T1: %v", err)
	}

	_, err := svc.Checkout(ctx, "T2", domain.CheckoutRequest{})
	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected stock error, got %v", err)
	}
	if stockErr.Available != 5 || stockErr.Requested != 10 {
		t.Fatalf("unexpected stock error %+v", stockErr)
	}

	view, _ := svc.Cart(ctx, "T2")
	if len(view.Lines) != 1 {
		t.Fatalf("failed checkout must keep the cart, got %+v", view.Lines)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, _, rec := newTestService(t)
	input := domain.ProductInput{Name: "Lem Kertas", Category: "alat tulis", CostPrice: int64Ptr(1500), SellPrice: int64Ptr(2500), Stock: intPtr(12)}

	if _, err := svc.CreateProduct(cashierContext(), input); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	created, err := svc.CreateProduct(adminContext(), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Stock != 12 {
		t.Fatalf("unexpected product %+v", created)
	}
	if kinds := rec.kinds(); len(kinds) != 1 || kinds[0] != domain.EventProductAdded {
		t.Fatalf("expected product_added event, got %v", kinds)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminContext()

	_, err := svc.CreateProduct(ctx, domain.ProductInput{Name: "Lem", CostPrice: int64Ptr(1), SellPrice: int64Ptr(2)})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "stock" {
		t.Fatalf("expected stock validation error, got %v", err)
	}

	_, err = svc.CreateProduct(ctx, domain.ProductInput{Name: "  ", CostPrice: int64Ptr(1), SellPrice: int64Ptr(2), Stock: intPtr(1)})
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}

	service, err := svc.CreateProduct(ctx, domain.ProductInput{Name: "Jilid Spiral", CostPrice: int64Ptr(3000), SellPrice: int64Ptr(5000), Stock: intPtr(9), IsService: true})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if service.Stock != 0 {
		t.Fatalf("services carry no stock, got %d", service.Stock)
	}
}

func TestUpdateStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminContext()

	updated, err := svc.UpdateStock(ctx, "P002", domain.StockRequest{Delta: intPtr(-80)})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("expected clamp at zero, got %d", updated.Stock)
	}

	updated, err = svc.UpdateStock(ctx, "P002", domain.StockRequest{Quantity: intPtr(7), Delta: intPtr(100)})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if updated.Stock != 7 {
		t.Fatalf("expected quantity to win over delta, got %d", updated.Stock)
	}

	if _, err := svc.UpdateStock(ctx, "P001", domain.StockRequest{Quantity: intPtr(3)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for service product, got %v", err)
	}
	if _, err := svc.UpdateStock(ctx, "P002", domain.StockRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty request, got %v", err)
	}
	if _, err := svc.UpdateStock(cashierContext(), "P002", domain.StockRequest{Delta: intPtr(1)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	for _, p := range low {
		if p.ID == "P002" {
			t.Fatalf("stock 7 is above the threshold")
		}
	}
}

func TestConcurrentTerminalsShareCatalog(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := cashierContext()

	terminals := []string{"A", "B", "C", "D"}
	for _, terminal := range terminals {
		if _, err := svc.AddToCart(ctx, terminal, domain.AddLineRequest{ProductID: "P005", Quantity: 10}); err != nil {
			t.Fatalf("add %s: %v", terminal, err)
		}
	}

	var wg sync.WaitGroup
	for _, terminal := range terminals {
		wg.Add(1)
		go func(terminal string) {
			defer wg.Done()
			_, _ = svc.Checkout(ctx, terminal, domain.CheckoutRequest{})
		}(terminal)
	}
	wg.Wait()

	ruler, _ := repo.GetProduct(context.Background(), "P005")
	if ruler.Stock != 0 {
		t.Fatalf("expected exactly three sales to fit, stock left %d", ruler.Stock)
	}
	receipts, _ := repo.RecentReceipts(context.Background(), 0)
	if len(receipts) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(receipts))
	}
}

var _ notify.Notifier = (*recorder)(nil)

func TestIdleTerminalsAreEvictedWhenFull(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := cashierContext()

	clock := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	svc.maxSessions = 2

	for _, terminal := range []string{"T1", "T2"} {
		if _, err := svc.AddToCart(ctx, terminal, domain.AddLineRequest{ProductID: "P002", Quantity: 1}); err != nil {
			t.Fatalf("add to %s: %v", terminal, err)
		}
	}
	if _, err := svc.Cart(ctx, "T3"); !errors.Is(err, ErrTooManyTerminals) {
		t.Fatalf("expected too many terminals, got %v", err)
	}

	clock = clock.Add(defaultSessionIdleTTL - time.Minute)
	if _, err := svc.Cart(ctx, "T2"); err != nil {
		t.Fatalf("touch T2: %v", err)
	}
	clock = clock.Add(2 * time.Minute)

	if _, err := svc.Cart(ctx, "T3"); err != nil {
		t.Fatalf("expected idle T1 to make room, got %v", err)
	}
	if len(svc.sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(svc.sessions))
	}
	if _, ok := svc.sessions["T1"]; ok {
		t.Fatalf("expected T1 to be evicted")
	}
	view, err := svc.Cart(ctx, "T2")
	if err != nil {
		t.Fatalf("cart T2: %v", err)
	}
	if view.Items != 1 {
		t.Fatalf("active terminal lost its cart: %+v", view)
	}
}
