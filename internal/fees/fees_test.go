package fees

import (
	"math/big"
	"testing"
)

func TestPayerAmount(t *testing.T) {
	tests := []struct {
		bps   int
		face  int64
		payer int64
	}{
		{0, 1_000_000, 1_000_000},
		{100, 1_000_000, 1_010_000},
		{250, 1_000_000, 1_025_000},
		{100, 1, 2}, // rounds up
		{100, 0, 0},
		{-5, 1_000_000, 1_000_000},
	}
	for _, tt := range tests {
		s := NewSchedule(tt.bps)
		if got := s.PayerAmount(tt.face); got != tt.payer {
			t.Errorf("bps=%d PayerAmount(%d) = %d, want %d", tt.bps, tt.face, got, tt.payer)
		}
		if got := s.PayerAmountBig(big.NewInt(tt.face)); got.Int64() != tt.payer {
			t.Errorf("bps=%d PayerAmountBig(%d) = %s, want %d", tt.bps, tt.face, got, tt.payer)
		}
	}
}
