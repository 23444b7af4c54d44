package pricing

import "kasirtoko/backend/internal/domain"

// Tier is a volume price for service products. A tier applies when the line
// quantity is at least MinQty.
type Tier struct {
	MinQty    int   `json:"min_qty"`
	UnitPrice int64 `json:"unit_price"`
}

// ServiceTiers is ordered from the highest threshold down.
var ServiceTiers = []Tier{
	{MinQty: 1000, UnitPrice: 260},
	{MinQty: 400, UnitPrice: 275},
	{MinQty: 150, UnitPrice: 285},
}

// UnitPrice returns the price a line of quantity units of product starts with.
// A manual override is taken verbatim.
func UnitPrice(product domain.Product, quantity int, manual *int64) domain.LinePrice {
	if manual != nil {
		return domain.ManualPrice(*manual)
	}
	return domain.AutoPrice(autoAmount(product, quantity))
}

// Reprice recomputes an auto line for its current quantity. Manual prices,
// and prices in a mode it does not know, are returned unchanged.
func Reprice(product domain.Product, quantity int, current domain.LinePrice) domain.LinePrice {
	if current.Mode == domain.PriceAuto {
		return domain.AutoPrice(autoAmount(product, quantity))
	}
	return current
}

func autoAmount(product domain.Product, quantity int) int64 {
	if !product.IsService {
		return product.SellPrice
	}
	for _, tier := range ServiceTiers {
		if quantity >= tier.MinQty {
			return tier.UnitPrice
		}
	}
	return product.SellPrice
}
