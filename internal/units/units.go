package units

import (
	"strings"

	"kasirtoko/backend/internal/domain"
)

// Unit is a packaging unit a cashier can sell in.
type Unit struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	Multiplier int    `json:"multiplier"`
}

var (
	Piece  = Unit{Code: "pcs", Label: "Pcs", Multiplier: 1}
	Dozen  = Unit{Code: "lusin", Label: "Lusin (12)", Multiplier: 12}
	Score  = Unit{Code: "kodi", Label: "Kodi (20)", Multiplier: 20}
	Gross  = Unit{Code: "gros", Label: "Gros (144)", Multiplier: 144}
	Carton = Unit{Code: "karton", Label: "Karton (5 pack)", Multiplier: 5}
)

var common = []Unit{Piece, Dozen, Score, Gross}

// For lists the units a product can be sold in. Cartons only exist for HVS
// paper packs.
func For(product domain.Product) []Unit {
	out := append([]Unit(nil), common...)
	if strings.Contains(strings.ToUpper(product.Name), "HVS") {
		out = append(out, Carton)
	}
	return out
}

// Quantity converts count units of code into base pieces for product.
// An empty code means pieces.
func Quantity(product domain.Product, code string, count int) (int, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = Piece.Code
	}
	for _, u := range For(product) {
		if u.Code == code {
			return count * u.Multiplier, nil
		}
	}
	return 0, domain.NewValidationError("unit", "unit "+code+" is not available for "+product.Name)
}
