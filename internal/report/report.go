package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"kasirtoko/backend/internal/cache"
	"kasirtoko/backend/internal/domain"
)

const (
	DefaultLowStockThreshold = 5
	dateLayout               = "2006-01-02"
)

type ReceiptLister interface {
	ListReceipts(ctx context.Context, from time.Time, to time.Time) ([]domain.Receipt, error)
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type Options struct {
	CacheTTL          time.Duration
	LowStockThreshold int
	Location          *time.Location
}

// Engine builds the shop dashboard figures. Daily summaries are cached and
// concurrent requests for the same day share one computation.
type Engine struct {
	receipts  ReceiptLister
	products  ProductLister
	cache     cache.SummaryCache
	cacheTTL  time.Duration
	threshold int
	location  *time.Location
	group     singleflight.Group
	logger    zerolog.Logger

	// generations counts invalidations per cache key. A summary computed
	// across an invalidation is returned but not cached.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewEngine(receipts ReceiptLister, products ProductLister, cacheStore cache.SummaryCache, opts Options, logger zerolog.Logger) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSummaryCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Engine{
		receipts:  receipts,
		products:  products,
		cache:     cacheStore,
		cacheTTL:  opts.CacheTTL,
		threshold: opts.LowStockThreshold,
		location:  opts.Location,
		logger:    logger.With().Str("component", "report").Logger(),

		generations: make(map[string]uint64),
	}
}

// ParseDay reads a YYYY-MM-DD date in the engine's location. An empty value
// means today.
func (e *Engine) ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return e.dayStart(time.Now()), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, e.location)
	if err != nil {
		return time.Time{}, domain.NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func (e *Engine) DailySummary(ctx context.Context, day time.Time) (domain.SalesSummary, error) {
	start := e.dayStart(day)
	key := cacheKey(start)

	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("summary cache read failed")
	}

	resultChan := e.group.DoChan(key, func() (interface{}, error) {
		return e.computeSummary(context.WithoutCancel(ctx), start)
	})
	select {
	case <-ctx.Done():
		return domain.SalesSummary{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return domain.SalesSummary{}, res.Err
		}
		return res.Val.(domain.SalesSummary), nil
	}
}

// Invalidate drops the cached summary for the day containing at.
func (e *Engine) Invalidate(ctx context.Context, at time.Time) {
	key := cacheKey(e.dayStart(at))
	e.genMu.Lock()
	e.generations[key]++
	e.genMu.Unlock()
	e.group.Forget(key)

	if err := e.cache.Delete(ctx, key); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("summary cache invalidation failed")
	}
}

// LowStock lists physical products at or below the threshold, emptiest first.
func (e *Engine) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := e.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.IsService || p.Stock > e.threshold {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.Stock, b.Stock)
	})
	return out, nil
}

func (e *Engine) computeSummary(ctx context.Context, start time.Time) (domain.SalesSummary, error) {
	key := cacheKey(start)
	gen := e.generation(key)

	receipts, err := e.receipts.ListReceipts(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("list receipts: %w", err)
	}

	summary := domain.SalesSummary{Date: start.Format(dateLayout)}
	for _, r := range receipts {
		summary.Transactions++
		summary.Revenue += r.Total
		summary.Discounts += r.DiscountApplied
		summary.Profit += r.Profit
		for _, line := range r.Lines {
			if line.Product.IsService {
				summary.ServiceUnits += line.Quantity
				continue
			}
			summary.ItemsSold += line.Quantity
		}
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.generations[key] != gen {
		e.logger.Debug().Str("key", key).Msg("summary invalidated while computing, not cached")
		return summary, nil
	}
	if err := e.cache.Set(ctx, key, &summary, e.cacheTTL); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("summary cache write failed")
	}
	return summary, nil
}

func (e *Engine) generation(key string) uint64 {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	return e.generations[key]
}

func (e *Engine) dayStart(t time.Time) time.Time {
	local := t.In(e.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location)
}

func cacheKey(day time.Time) string {
	return "pos:summary:" + day.Format(dateLayout)
}
