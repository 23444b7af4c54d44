package memory

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"kasirtoko/backend/internal/domain"
)

// SeedProducts is the starting catalog of the shop.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{ID: "P001", Name: "Fotocopy A4", Category: "jasa", CostPrice: 200, SellPrice: 300, IsService: true},
		{ID: "P002", Name: "Pulpen Standar", Category: "alat tulis", Barcode: "8991389200012", CostPrice: 2000, SellPrice: 3000, Stock: 50},
		{ID: "P003", Name: "Pensil 2B", Category: "alat tulis", Barcode: "8991389200029", CostPrice: 1500, SellPrice: 2500, Stock: 100},
		{ID: "P004", Name: "Kertas A4 Rim", Category: "kertas", Barcode: "8991389200036", CostPrice: 45000, SellPrice: 55000, Stock: 20},
		{ID: "P005", Name: "Penggaris 30cm", Category: "alat tulis", Barcode: "8991389200043", CostPrice: 3000, SellPrice: 5000, Stock: 30},
		{ID: "P006", Name: "Spidol Boardmarker", Category: "alat tulis", Barcode: "8991389200050", CostPrice: 8000, SellPrice: 12000, Stock: 25},
		{ID: "P007", Name: "Kertas HVS A4 Pack", Category: "kertas", Barcode: "8991389200067", CostPrice: 8000, SellPrice: 12000, Stock: 40},
		{ID: "P008", Name: "Correction Pen (Tip-Ex)", Category: "alat tulis", Barcode: "8991389200074", CostPrice: 4000, SellPrice: 7000, Stock: 15},
	}
}

// NewSeeded returns a store with the shop catalog and the dev operator
// accounts. Passwords come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// with dev defaults when unset; PostgreSQL is used whenever DATABASE_URL is set.
func NewSeeded(logger zerolog.Logger) (*Store, error) {
	users, err := SeedUsers(logger)
	if err != nil {
		return nil, err
	}
	s := New(SeedProducts()...)
	for _, u := range users {
		s.usersByUsername[u.Username] = u
	}
	return s, nil
}

// SeedUsers returns the admin and cashier operator accounts with bcrypt
// hashed passwords.
func SeedUsers(logger zerolog.Logger) ([]domain.UserAccount, error) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Warn().Str("component", "seed").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"kasir", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users = append(users, domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		})
	}
	return users, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
