package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func saleOf(id string, product domain.Product, qty int, at time.Time) domain.Receipt {
	return domain.Receipt{
		ID:        id,
		Lines:     []domain.ReceiptLine{{Product: product, Quantity: qty, UnitPrice: product.SellPrice, LineTotal: product.SellPrice * int64(qty)}},
		Subtotal:  product.SellPrice * int64(qty),
		Total:     product.SellPrice * int64(qty),
		CreatedAt: at,
	}
}

func TestCommitSaleDecrementsStockAndAppends(t *testing.T) {
	s := New(SeedProducts()...)
	ctx := context.Background()

	pen, _ := s.GetProduct(ctx, "P002")
	copyService, _ := s.GetProduct(ctx, "P001")
	receipt := saleOf("INV-1", *pen, 2, time.Now())
	receipt.Lines = append(receipt.Lines, domain.ReceiptLine{Product: *copyService, Quantity: 400, UnitPrice: 275})

	if _, err := s.CommitSale(ctx, receipt); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pen, _ = s.GetProduct(ctx, "P002")
	if pen.Stock != 48 {
		t.Fatalf("expected stock 48, got %d", pen.Stock)
	}
	copyService, _ = s.GetProduct(ctx, "P001")
	if copyService.Stock != 0 {
		t.Fatalf("service stock must not change, got %d", copyService.Stock)
	}
	recent, _ := s.RecentReceipts(ctx, 5)
	if len(recent) != 1 || recent[0].ID != "INV-1" {
		t.Fatalf("expected receipt appended, got %+v", recent)
	}
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	s := New(SeedProducts()...)
	ctx := context.Background()

	pen, _ := s.GetProduct(ctx, "P002")
	tipex, _ := s.GetProduct(ctx, "P008")
	receipt := saleOf("INV-2", *pen, 2, time.Now())
	receipt.Lines = append(receipt.Lines, domain.ReceiptLine{Product: *tipex, Quantity: 16, UnitPrice: 7000})

	_, err := s.CommitSale(ctx, receipt)
	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != "P008" {
		t.Fatalf("expected stock error for P008, got %v", err)
	}

	pen, _ = s.GetProduct(ctx, "P002")
	if pen.Stock != 50 {
		t.Fatalf("failed commit must not touch stock, got %d", pen.Stock)
	}
	if recent, _ := s.RecentReceipts(ctx, 0); len(recent) != 0 {
		t.Fatalf("failed commit must not append a receipt")
	}
}

func TestCommitSaleSumsLinesOfSameProduct(t *testing.T) {
	s := New(domain.Product{ID: "pen", Name: "Pulpen", SellPrice: 3000, Stock: 5})
	ctx := context.Background()

	pen, _ := s.GetProduct(ctx, "pen")
	receipt := saleOf("INV-3", *pen, 3, time.Now())
	receipt.Lines = append(receipt.Lines, domain.ReceiptLine{Product: *pen, Quantity: 3, UnitPrice: 2500, ManualPrice: true})

	if _, err := s.CommitSale(ctx, receipt); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock across lines, got %v", err)
	}
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	s := New(domain.Product{ID: "pen", Name: "Pulpen", SellPrice: 3000, Stock: 10})
	ctx := context.Background()
	pen, _ := s.GetProduct(ctx, "pen")

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CommitSale(ctx, saleOf("INV-C"+string(rune('a'+i)), *pen, 1, time.Now()))
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if committed != 10 {
		t.Fatalf("expected exactly 10 commits, got %d", committed)
	}
	pen, _ = s.GetProduct(ctx, "pen")
	if pen.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", pen.Stock)
	}
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	s := New(SeedProducts()...)
	ctx := context.Background()

	p, err := s.AdjustStock(ctx, "P008", -100)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if p.Stock != 0 {
		t.Fatalf("expected clamp to 0, got %d", p.Stock)
	}
	p, _ = s.AdjustStock(ctx, "P008", 3)
	if p.Stock != 3 {
		t.Fatalf("expected 3, got %d", p.Stock)
	}
	if _, err := s.UpdateStock(ctx, "P008", -1); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected invalid record for negative stock, got %v", err)
	}
}

func TestCreateProductAssignsIDAndRejectsDuplicateBarcode(t *testing.T) {
	s := New(SeedProducts()...)
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, domain.Product{Name: "Stapler", SellPrice: 15000, CostPrice: 10000, Stock: 4, Barcode: "111"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	byCode, err := s.GetProductByBarcode(ctx, "111")
	if err != nil || byCode.ID != created.ID {
		t.Fatalf("expected barcode lookup to find %s, got %v (%v)", created.ID, byCode, err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Other", Barcode: "111"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on barcode, got %v", err)
	}
}

func TestRecentAndRangedReceipts(t *testing.T) {
	s := New(SeedProducts()...)
	ctx := context.Background()
	pen, _ := s.GetProduct(ctx, "P002")

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{day.Add(-time.Hour), day.Add(time.Hour), day.Add(5 * time.Hour)} {
		if err := s.AppendReceipt(ctx, saleOf("INV-R"+string(rune('0'+i)), *pen, 1, at)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, _ := s.RecentReceipts(ctx, 2)
	if len(recent) != 2 || recent[0].ID != "INV-R2" || recent[1].ID != "INV-R1" {
		t.Fatalf("expected newest first, got %+v", recent)
	}

	inDay, _ := s.ListReceipts(ctx, day, day.Add(24*time.Hour))
	if len(inDay) != 2 {
		t.Fatalf("expected two receipts in range, got %d", len(inDay))
	}

	if err := s.AppendReceipt(ctx, saleOf("INV-R0", *pen, 1, day)); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate receipt id conflict, got %v", err)
	}
}

func TestNewSeededHashesUsers(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "rahasia-admin")
	t.Setenv("SEED_CASHIER_PASSWORD", "rahasia-kasir")

	s, err := NewSeeded(zerolog.Nop())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	users, _ := s.ListUsers(context.Background())
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Password == "rahasia-admin" || u.Password == "rahasia-kasir" {
			t.Fatalf("seed password for %s stored in plain text", u.Username)
		}
	}
}
