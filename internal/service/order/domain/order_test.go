package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	lines := []OrderLine{
		{ProductID: "P1", UnitPrice: 100, Quantity: 2},
		{ProductID: "P2", UnitPrice: 50, Quantity: 1},
	}

	order, err := NewOrder("C1", lines)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "C1", order.CustomerID)
	assert.Equal(t, StatusPlaced, order.Status)
	assert.False(t, order.CreatedAt.IsZero())
	for _, line := range order.Lines {
		assert.Equal(t, order.ID, line.OrderID)
	}
}

func TestNewOrder_RejectsEmptyLines(t *testing.T) {
	_, err := NewOrder("C1", nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestNewOrder_RejectsEmptyCustomer(t *testing.T) {
	_, err := NewOrder("", []OrderLine{{ProductID: "P1", Quantity: 1}})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestTotalAmount(t *testing.T) {
	order := &Order{Lines: []OrderLine{
		{UnitPrice: 100, Quantity: 2},
		{UnitPrice: 50, Quantity: 1},
	}}
	assert.Equal(t, 250.0, order.TotalAmount())
}

func TestHasStockFor_Boundary(t *testing.T) {
	p := Product{ID: "P1", AvailableQuantity: 3}

	assert.True(t, p.HasStockFor(2))
	// 请求量等于可用量时拒绝
	assert.False(t, p.HasStockFor(3))
	assert.False(t, p.HasStockFor(4))
}

func TestAggregateLineRequests(t *testing.T) {
	tests := []struct {
		name     string
		input    []OrderLineRequest
		expected []OrderLineRequest
	}{
		{
			name:     "no duplicates",
			input:    []OrderLineRequest{{"P1", 1}, {"P2", 2}},
			expected: []OrderLineRequest{{"P1", 1}, {"P2", 2}},
		},
		{
			name:     "duplicates merged keeping first position",
			input:    []OrderLineRequest{{"P1", 1}, {"P2", 2}, {"P1", 3}},
			expected: []OrderLineRequest{{"P1", 4}, {"P2", 2}},
		},
		{
			name:     "empty",
			input:    nil,
			expected: []OrderLineRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AggregateLineRequests(tt.input))
		})
	}
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{Shortages: []StockShortage{
		{ProductID: "P1", Available: 3},
		{ProductID: "P2", Available: 0},
	}}
	assert.Equal(t, "the products below do not have enough stock: P1 (available 3), P2 (available 0)", err.Error())
}

func TestProductsNotFoundError_Message(t *testing.T) {
	err := &ProductsNotFoundError{Missing: []string{"P9", "P10"}}
	assert.Equal(t, "could not find products: P9, P10", err.Error())
}

func TestReservationCommitError_Unwrap(t *testing.T) {
	cause := &InsufficientStockError{Shortages: []StockShortage{{ProductID: "P1", Available: 1}}}
	err := &ReservationCommitError{OrderID: "O1", Cause: cause}

	var inner *InsufficientStockError
	assert.ErrorAs(t, err, &inner)
	assert.Contains(t, err.Error(), "O1")
}
