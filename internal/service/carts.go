package service

import (
	"context"
	"strings"
	"time"

	"kasirtoko/backend/internal/cart"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/units"
)

func (s *Service) session(terminal string) (*session, error) {
	terminal = strings.TrimSpace(terminal)
	if err := s.validate.Var(terminal, "required,max=64,printascii,excludesall= /"); err != nil {
		return nil, domain.NewValidationError("terminal", "must be a short printable identifier")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, ok := s.sessions[terminal]
	if !ok {
		if len(s.sessions) >= s.maxSessions {
			s.evictIdleLocked(now)
		}
		if len(s.sessions) >= s.maxSessions {
			return nil, ErrTooManyTerminals
		}
		sess = &session{cart: cart.NewEngine(s.repo, s.notifier)}
		s.sessions[terminal] = sess
	}
	sess.lastUsed = now
	return sess, nil
}

// evictIdleLocked drops terminals untouched for longer than the idle TTL,
// together with whatever their carts still hold.
func (s *Service) evictIdleLocked(now time.Time) {
	for terminal, sess := range s.sessions {
		if now.Sub(sess.lastUsed) <= s.idleTTL {
			continue
		}
		delete(s.sessions, terminal)
		s.logger.Info().
			Str("terminal", terminal).
			Time("last_used", sess.lastUsed).
			Msg("idle terminal cart evicted")
	}
}

func (s *Service) Cart(ctx context.Context, terminal string) (domain.CartView, error) {
	sess, err := s.session(terminal)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(ctx, terminal, sess.cart)
}

func (s *Service) AddToCart(ctx context.Context, terminal string, req domain.AddLineRequest) (domain.CartView, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}

	var product *domain.Product
	var err error
	if req.ProductID != "" {
		product, err = s.repo.GetProduct(ctx, req.ProductID)
	} else {
		product, err = s.repo.GetProductByBarcode(ctx, req.Barcode)
	}
	if err != nil {
		return domain.CartView{}, err
	}

	quantity, err := units.Quantity(*product, req.Unit, req.Quantity)
	if err != nil {
		return domain.CartView{}, err
	}

	sess, err := s.session(terminal)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err := sess.cart.AddLine(ctx, product.ID, quantity, req.Price); err != nil {
		return domain.CartView{}, err
	}
	return s.view(ctx, terminal, sess.cart)
}

// UpdateCartLine sets the quantity of a product's line. A quantity of zero
// or less drops every line of that product.
func (s *Service) UpdateCartLine(ctx context.Context, terminal, productID string, req domain.UpdateLineRequest) (domain.CartView, error) {
	if err := s.check(req); err != nil {
		return domain.CartView{}, err
	}
	sess, err := s.session(terminal)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err := sess.cart.UpdateLineQuantity(ctx, productID, req.Quantity, req.Price); err != nil {
		return domain.CartView{}, err
	}
	return s.view(ctx, terminal, sess.cart)
}

func (s *Service) RemoveFromCart(ctx context.Context, terminal, productID string) (domain.CartView, error) {
	sess, err := s.session(terminal)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cart.RemoveLine(productID)
	return s.view(ctx, terminal, sess.cart)
}

func (s *Service) ClearCart(ctx context.Context, terminal string) (domain.CartView, error) {
	sess, err := s.session(terminal)
	if err != nil {
		return domain.CartView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cart.Clear()
	return s.view(ctx, terminal, sess.cart)
}

func (s *Service) Checkout(ctx context.Context, terminal string, req domain.CheckoutRequest) (*domain.Receipt, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sess, err := s.session(terminal)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	receipt, err := s.processor.Checkout(ctx, sess.cart, req.Discount, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if s.reports != nil {
		s.reports.Invalidate(ctx, receipt.CreatedAt)
	}

	actor, _ := ActorFromContext(ctx)
	s.logger.Info().
		Str("terminal", terminal).
		Str("receipt_id", receipt.ID).
		Str("cashier", actor.Username).
		Int64("total", receipt.Total).
		Msg("sale committed")
	return receipt, nil
}

func (s *Service) view(ctx context.Context, terminal string, c *cart.Engine) (domain.CartView, error) {
	lines := c.Lines()
	view := domain.CartView{
		Terminal: strings.TrimSpace(terminal),
		Lines:    make([]domain.CartLineView, 0, len(lines)),
		Subtotal: c.Subtotal(),
	}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return domain.CartView{}, err
	}

	for _, line := range lines {
		product := products[line.ProductID]
		view.Lines = append(view.Lines, domain.CartLineView{
			ProductID: line.ProductID,
			Name:      product.Name,
			IsService: product.IsService,
			Quantity:  line.Quantity,
			Price:     line.Price,
			LineTotal: line.Total(),
		})
		view.Items += line.Quantity
	}
	return view, nil
}
