package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/checkout-pricing/internal/pricing"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

var (
	// ErrNotFound is returned when an order id is unknown or expired.
	ErrNotFound = errors.New("order: not found")
	// ErrDuplicate is returned when saving an order whose id is already taken.
	ErrDuplicate = errors.New("order: duplicate id")
	// ErrInvalidTransition is returned when a status change would move an order backwards.
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// Order is a placed checkout with its pricing snapshot.
type Order struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"productId"`
	Email         string          `json:"email"`
	CPF           string          `json:"cpf"`
	PaymentMethod pricing.Method  `json:"paymentMethod"`
	Installments  int             `json:"installments"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	Pricing       *pricing.Result `json:"pricing,omitempty"`
}

// Stats summarises stored orders by status.
type Stats struct {
	Total      int `json:"total"`
	Confirmed  int `json:"confirmed"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
}

func (s *Stats) add(status Status) {
	s.Total++
	switch status {
	case StatusConfirmed:
		s.Confirmed++
	case StatusProcessing:
		s.Processing++
	case StatusCompleted:
		s.Completed++
	}
}

// ParseStatus normalises a status name.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusConfirmed, StatusProcessing, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("order: unknown status %q", raw)
	}
}

func statusRank(status Status) int {
	switch status {
	case StatusConfirmed:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether an order may move from current to target.
func CanTransition(current, target Status) bool {
	from, to := statusRank(current), statusRank(target)
	return from >= 0 && to > from
}

// DemoOrders returns the development seed orders stamped with createdAt.
func DemoOrders(createdAt time.Time) []Order {
	seed := func(id, email, cpf string, method pricing.Method, installments int) Order {
		return Order{
			ID:            id,
			ProductID:     "curso-marketing-digital",
			Email:         email,
			CPF:           cpf,
			PaymentMethod: method,
			Installments:  installments,
			Status:        StatusConfirmed,
			CreatedAt:     createdAt,
		}
	}
	return []Order{
		seed("CKT-1757968838221-2UE6BJFII", "lucas.silvestre@gmail.com", "07822816489", pricing.MethodPix, 1),
		seed("CKT-1757968406214-FDTYQ2AKR", "cliente@exemplo.com", "12345678901", pricing.MethodPix, 1),
		seed("CKT-1757969000000-EXEMPLO123", "teste@exemplo.com", "11122233344", pricing.MethodCard, 3),
	}
}
