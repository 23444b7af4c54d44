package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"kasirtoko/backend/internal/cart"
	"kasirtoko/backend/internal/checkout"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/notify"
	"kasirtoko/backend/internal/report"
	"kasirtoko/backend/internal/store"
)

var (
	ErrForbidden        = errors.New("admin role required")
	ErrTooManyTerminals = errors.New("too many open terminal carts")
)

const (
	defaultMaxSessions    = 512
	defaultSessionIdleTTL = 12 * time.Hour
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// session is one terminal's cart. Its mutex serializes requests from the
// same terminal because cart.Engine is single-threaded.
type session struct {
	mu   sync.Mutex
	cart *cart.Engine

	// lastUsed is guarded by Service.mu.
	lastUsed time.Time
}

type Service struct {
	repo      store.Repository
	processor *checkout.Processor
	reports   *report.Engine
	notifier  notify.Notifier
	validate  *validator.Validate
	logger    zerolog.Logger

	mu          sync.Mutex
	sessions    map[string]*session
	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
}

func New(repo store.Repository, reports *report.Engine, notifier notify.Notifier, logger zerolog.Logger) *Service {
	notifier = notify.OrNop(notifier)
	return &Service{
		repo:      repo,
		processor: checkout.NewProcessor(repo, repo, notifier),
		reports:   reports,
		notifier:  notifier,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With().Str("component", "service").Logger(),
		sessions:  make(map[string]*session),

		maxSessions: defaultMaxSessions,
		idleTTL:     defaultSessionIdleTTL,
		now:         time.Now,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.Barcode = strings.TrimSpace(input.Barcode)
	if err := s.check(input); err != nil {
		return domain.Product{}, err
	}
	if !input.IsService && input.Stock == nil {
		return domain.Product{}, domain.NewValidationError("stock", "is required for physical products")
	}

	product := domain.Product{
		Name:      input.Name,
		Category:  input.Category,
		Barcode:   input.Barcode,
		CostPrice: *input.CostPrice,
		SellPrice: *input.SellPrice,
		IsService: input.IsService,
	}
	if input.Stock != nil && !input.IsService {
		product.Stock = *input.Stock
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.notifier.Emit(ctx, domain.Event{
		Kind:        domain.EventProductAdded,
		ProductID:   created.ID,
		ProductName: created.Name,
		Message:     "produk baru ditambahkan ke katalog",
		At:          time.Now().UTC(),
	})
	return *created, nil
}

// UpdateStock applies a StockRequest. Quantity takes precedence over Delta;
// a delta that would go below zero leaves the stock at zero.
func (s *Service) UpdateStock(ctx context.Context, productID string, req domain.StockRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if existing.IsService {
		return domain.Product{}, domain.NewValidationError("product_id", "services have no stock")
	}

	var updated *domain.Product
	switch {
	case req.Quantity != nil:
		updated, err = s.repo.UpdateStock(ctx, productID, *req.Quantity)
	case req.Delta != nil:
		updated, err = s.repo.AdjustStock(ctx, productID, *req.Delta)
	default:
		return domain.Product{}, domain.NewValidationError("quantity", "quantity or delta is required")
	}
	if err != nil {
		return domain.Product{}, err
	}

	s.notifier.Emit(ctx, domain.Event{
		Kind:        domain.EventProductUpdated,
		ProductID:   updated.ID,
		ProductName: updated.Name,
		Available:   updated.Stock,
		Message:     "stok diperbarui",
		At:          time.Now().UTC(),
	})
	return *updated, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.reports.LowStock(ctx)
}

func (s *Service) DailySummary(ctx context.Context, date string) (domain.SalesSummary, error) {
	day, err := s.reports.ParseDay(date)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return s.reports.DailySummary(ctx, day)
}

func (s *Service) RecentReceipts(ctx context.Context, limit int) ([]domain.Receipt, error) {
	return s.repo.RecentReceipts(ctx, limit)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(toSnake(fe.Field()), fmt.Sprintf("failed %s validation", fe.Tag()))
	}
	return domain.NewValidationError("", err.Error())
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
