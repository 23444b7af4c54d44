package cart

import (
	"fmt"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/pricing"
)

// The functions below never modify their input slice.

func addLine(lines []domain.CartLine, product domain.Product, quantity int, price domain.LinePrice) []domain.CartLine {
	next := clone(lines)
	for i := range next {
		if next[i].ProductID != product.ID || next[i].EffectivePrice() != price.Amount {
			continue
		}
		next[i].Quantity += quantity
		if price.Mode == domain.PriceManual {
			next[i].Price.Mode = domain.PriceManual
		}
		next[i].Price = pricing.Reprice(product, next[i].Quantity, next[i].Price)
		return coalesce(next, product)
	}
	return append(next, domain.CartLine{ProductID: product.ID, Quantity: quantity, Price: price})
}

func setQuantity(lines []domain.CartLine, idx int, product domain.Product, quantity int) []domain.CartLine {
	next := clone(lines)
	next[idx].Quantity = quantity
	next[idx].Price = pricing.Reprice(product, quantity, next[idx].Price)
	return coalesce(next, product)
}

func removeProduct(lines []domain.CartLine, productID string) []domain.CartLine {
	next := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == productID {
			continue
		}
		next = append(next, line)
	}
	return next
}

// coalesce merges lines of product that ended up at the same price after a
// reprice. The earlier line survives and becomes manual if either side was.
func coalesce(lines []domain.CartLine, product domain.Product) []domain.CartLine {
	for {
		i, j := duplicatePair(lines, product.ID)
		if i < 0 {
			return lines
		}
		lines[i].Quantity += lines[j].Quantity
		if lines[j].IsManual() {
			lines[i].Price.Mode = domain.PriceManual
		}
		lines[i].Price = pricing.Reprice(product, lines[i].Quantity, lines[i].Price)
		lines = append(lines[:j], lines[j+1:]...)
	}
}

func duplicatePair(lines []domain.CartLine, productID string) (int, int) {
	for i := range lines {
		if lines[i].ProductID != productID {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			if lines[j].ProductID == productID && lines[j].EffectivePrice() == lines[i].EffectivePrice() {
				return i, j
			}
		}
	}
	return -1, -1
}

func findLine(lines []domain.CartLine, productID string, price *int64) int {
	for i, line := range lines {
		if line.ProductID != productID {
			continue
		}
		if price == nil || line.EffectivePrice() == *price {
			return i
		}
	}
	return -1
}

func quantityFor(lines []domain.CartLine, productID string) int {
	total := 0
	for _, line := range lines {
		if line.ProductID == productID {
			total += line.Quantity
		}
	}
	return total
}

func subtotal(lines []domain.CartLine) int64 {
	var sum int64
	for _, line := range lines {
		sum += line.Total()
	}
	return sum
}

// checkBounds rejects lines whose quantity, total or running subtotal leave
// the ranges in domain. Totals are compared by division so nothing overflows.
func checkBounds(lines []domain.CartLine) error {
	var sum int64
	for _, line := range lines {
		if line.Quantity > domain.MaxLineQuantity {
			return domain.NewValidationError("quantity", fmt.Sprintf("must not exceed %d per line", domain.MaxLineQuantity))
		}
		price := line.EffectivePrice()
		if price > 0 && int64(line.Quantity) > (domain.MaxCartAmount-sum)/price {
			return domain.NewValidationError("subtotal", fmt.Sprintf("must not exceed %d", domain.MaxCartAmount))
		}
		sum += line.Total()
	}
	return nil
}

func clone(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines), len(lines)+1)
	copy(out, lines)
	return out
}
