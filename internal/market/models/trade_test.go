package models_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"soulledger/internal/market/models"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name         string
		price        uint64
		feeBps       uint64
		wantFee      uint64
		wantProceeds uint64
	}{
		{name: "standard fee", price: 100, feeBps: 250, wantFee: 2, wantProceeds: 98},
		{name: "zero fee", price: 100, feeBps: 0, wantFee: 0, wantProceeds: 100},
		{name: "max fee", price: 100, feeBps: models.MaxFeeBps, wantFee: 10, wantProceeds: 90},
		{name: "fee rounds down", price: 39, feeBps: 250, wantFee: 0, wantProceeds: 39},
		{name: "one unit price", price: 1, feeBps: 250, wantFee: 0, wantProceeds: 1},
		{name: "large price does not overflow", price: math.MaxInt64, feeBps: 250, wantFee: math.MaxInt64 / 40, wantProceeds: math.MaxInt64 - math.MaxInt64/40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, proceeds := models.SplitFee(tt.price, tt.feeBps)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantProceeds, proceeds)
			assert.Equal(t, tt.price, fee+proceeds)
		})
	}
}
