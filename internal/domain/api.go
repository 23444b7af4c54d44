package domain

type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required_without=Barcode,max=64"`
	Barcode   string `json:"barcode" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=100000"`
	Unit      string `json:"unit" validate:"max=16"`
	Price     *int64 `json:"price" validate:"omitempty,gte=0,lte=1000000000"`
}

type UpdateLineRequest struct {
	Quantity int    `json:"quantity" validate:"lte=10000000"`
	Price    *int64 `json:"price" validate:"omitempty,gte=0,lte=1000000000"`
}

type CheckoutRequest struct {
	Discount      DiscountSpec `json:"discount"`
	PaymentMethod string       `json:"payment_method" validate:"max=16"`
}

// StockRequest either sets the stock to Quantity or shifts it by Delta.
type StockRequest struct {
	Quantity *int `json:"quantity" validate:"omitempty,gte=0"`
	Delta    *int `json:"delta"`
}

type CartLineView struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	IsService bool      `json:"is_service"`
	Quantity  int       `json:"quantity"`
	Price     LinePrice `json:"price"`
	LineTotal int64     `json:"line_total"`
}

type CartView struct {
	Terminal string         `json:"terminal"`
	Lines    []CartLineView `json:"lines"`
	Items    int            `json:"items"`
	Subtotal int64          `json:"subtotal"`
}
