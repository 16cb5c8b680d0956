package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProratedAmount(t *testing.T) {
	tests := []struct {
		name         string
		currentPrice float64
		newPrice     float64
		expected     float64
	}{
		{"basic to premium", 9.99, 29.99, 20.00},
		{"basic to enterprise", 9.99, 99.99, 90.00},
		{"premium to enterprise", 29.99, 99.99, 70.00},
		{"same price", 29.99, 29.99, 0},
		{"cheaper plan never credits", 29.99, 9.99, 0},
		{"from free", 0, 9.99, 9.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProratedAmount(tt.currentPrice, tt.newPrice))
		})
	}
}

func TestProratedAmount_Rounding(t *testing.T) {
	assert.Equal(t, 0.1, ProratedAmount(0.1, 0.2))
	assert.Equal(t, 10.01, ProratedAmount(19.99, 30.004))
}
