package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when no product matches the requested id.
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is a sellable item shown on the checkout page.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	Producer      string          `json:"producer"`
	Format        string          `json:"format"`
	DeliveryTime  string          `json:"deliveryTime"`
	Description   string          `json:"description"`
	Image         string          `json:"image"`
}

// DemoProducts returns the seed catalog.
func DemoProducts() []Product {
	return []Product{
		{
			ID:            "curso-marketing-digital",
			Name:          "Curso de Marketing Digital 2025",
			OriginalPrice: decimal.RequireFromString("497.00"),
			CurrentPrice:  decimal.RequireFromString("297.00"),
			Producer:      "João Silva",
			Format:        "digital",
			DeliveryTime:  "imediato",
			Description:   "Curso completo de marketing digital com estratégias atualizadas para 2025",
			Image:         "/viverdemkt.png",
		},
		{
			ID:            "curso-react",
			Name:          "React Avançado",
			OriginalPrice: decimal.NewFromInt(397),
			CurrentPrice:  decimal.NewFromInt(197),
			Producer:      "Maria Santos",
			Format:        "digital",
			DeliveryTime:  "imediato",
			Description:   "Domine React com hooks, context e performance",
			Image:         "/placeholder.jpg",
		},
		{
			ID:            "curso-typescript",
			Name:          "TypeScript Completo",
			OriginalPrice: decimal.NewFromInt(297),
			CurrentPrice:  decimal.NewFromInt(147),
			Producer:      "Carlos Oliveira",
			Format:        "digital",
			DeliveryTime:  "imediato",
			Description:   "TypeScript do básico ao avançado com projetos reais",
			Image:         "/placeholder.jpg",
		},
	}
}

// Service is a read-only, in-memory product catalog.
type Service struct {
	products []Product
	byID     map[string]int
}

// NewService indexes products. The first product is the checkout default.
func NewService(products []Product) (*Service, error) {
	if len(products) == 0 {
		return nil, errors.New("catalog: at least one product is required")
	}
	s := &Service{
		products: make([]Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: product %d has no id", i)
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", id)
		}
		if p.OriginalPrice.IsNegative() || p.CurrentPrice.IsNegative() {
			return nil, fmt.Errorf("catalog: product %q has a negative price", id)
		}
		p.ID = id
		s.products[i] = p
		s.byID[id] = i
	}
	return s, nil
}

// List returns every product in catalog order.
func (s *Service) List(_ context.Context) []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get looks a product up by id.
func (s *Service) Get(_ context.Context, id string) (Product, error) {
	idx, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return s.products[idx], nil
}

// Default returns the product shown when checkout is opened without an id.
func (s *Service) Default() Product {
	return s.products[0]
}
