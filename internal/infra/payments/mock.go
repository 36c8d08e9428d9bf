package payments

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockOrderPrefix tags orders minted locally in mock mode.
const MockOrderPrefix = "order_mock_"

func IsMockOrder(orderID string) bool {
	return strings.HasPrefix(orderID, MockOrderPrefix)
}

// NewMockOrder returns an order shaped exactly like a provider order.
func NewMockOrder(req OrderRequest) *Order {
	return &Order{
		ID:         MockOrderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Entity:     "order",
		Amount:     req.Amount,
		AmountPaid: 0,
		AmountDue:  req.Amount,
		Currency:   req.Currency,
		Receipt:    req.Receipt,
		Status:     "created",
		Notes:      req.Notes,
		CreatedAt:  time.Now().Unix(),
	}
}
