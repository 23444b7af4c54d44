package domain

import "time"

// Bounds on cart lines. They keep every line total, subtotal and profit well
// inside int64.
const (
	MaxUnitPrice    int64 = 1_000_000_000
	MaxLineQuantity       = 10_000_000
	MaxCartAmount   int64 = 1_000_000_000_000_000
)

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	CostPrice int64  `json:"cost_price"`
	SellPrice int64  `json:"sell_price"`
	Stock     int    `json:"stock"`
	IsService bool   `json:"is_service"`
}

// Margin is the per-unit profit at the catalog sell price.
func (p Product) Margin() int64 {
	return p.SellPrice - p.CostPrice
}

type ProductInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	Category  string `json:"category" validate:"max=60"`
	Barcode   string `json:"barcode" validate:"omitempty,max=64"`
	CostPrice *int64 `json:"cost_price" validate:"required,gte=0,lte=1000000000"`
	SellPrice *int64 `json:"sell_price" validate:"required,gte=0,lte=1000000000"`
	Stock     *int   `json:"stock" validate:"omitempty,gte=0"`
	IsService bool   `json:"is_service"`
}

type PriceMode string

const (
	PriceAuto   PriceMode = "auto"
	PriceManual PriceMode = "manual"
)

// LinePrice is the tagged price state of a cart line. Auto prices follow the
// pricing policy on every quantity change; manual prices are kept verbatim.
type LinePrice struct {
	Mode   PriceMode `json:"mode"`
	Amount int64     `json:"amount"`
}

func AutoPrice(amount int64) LinePrice {
	return LinePrice{Mode: PriceAuto, Amount: amount}
}

func ManualPrice(amount int64) LinePrice {
	return LinePrice{Mode: PriceManual, Amount: amount}
}

type CartLine struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     LinePrice `json:"price"`
}

func (l CartLine) EffectivePrice() int64 {
	return l.Price.Amount
}

func (l CartLine) IsManual() bool {
	return l.Price.Mode == PriceManual
}

func (l CartLine) Total() int64 {
	return l.Price.Amount * int64(l.Quantity)
}

type DiscountKind string

const (
	DiscountNone    DiscountKind = ""
	DiscountAmount  DiscountKind = "amount"
	DiscountPercent DiscountKind = "percent"
)

type DiscountSpec struct {
	Kind  DiscountKind `json:"kind"`
	Value int64        `json:"value"`
}

type ReceiptLine struct {
	Product     Product `json:"product"`
	Quantity    int     `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	ManualPrice bool    `json:"manual_price"`
	LineTotal   int64   `json:"line_total"`
	LineProfit  int64   `json:"line_profit"`
}

type Receipt struct {
	ID              string        `json:"id"`
	Lines           []ReceiptLine `json:"lines"`
	Subtotal        int64         `json:"subtotal"`
	Discount        DiscountSpec  `json:"discount"`
	DiscountApplied int64         `json:"discount_applied"`
	Total           int64         `json:"total"`
	Profit          int64         `json:"profit"`
	PaymentMethod   string        `json:"payment_method"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Clone returns a receipt whose line slice is not shared with r.
func (r Receipt) Clone() Receipt {
	out := r
	out.Lines = append([]ReceiptLine(nil), r.Lines...)
	return out
}

// StockDemand sums the quantities of non-service products in the receipt.
func (r Receipt) StockDemand() map[string]int {
	demand := make(map[string]int, len(r.Lines))
	for _, line := range r.Lines {
		if line.Product.IsService {
			continue
		}
		demand[line.Product.ID] += line.Quantity
	}
	return demand
}

type SalesSummary struct {
	Date         string `json:"date"`
	Transactions int    `json:"transactions"`
	Revenue      int64  `json:"revenue"`
	Discounts    int64  `json:"discounts"`
	Profit       int64  `json:"profit"`
	ItemsSold    int    `json:"items_sold"`
	ServiceUnits int    `json:"service_units"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
