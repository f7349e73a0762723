package models

import (
	"errors"
	"math"
	"testing"

	"github.com/arc-invoice/backend/internal/errs"
)

func TestIsValidMilestoneTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{MilestoneStatusPending, MilestoneStatusFunded, true},
		{MilestoneStatusFunded, MilestoneStatusApproved, true},
		{MilestoneStatusApproved, MilestoneStatusReleased, true},

		// Skipping
		{MilestoneStatusPending, MilestoneStatusApproved, false},
		{MilestoneStatusPending, MilestoneStatusReleased, false},
		{MilestoneStatusFunded, MilestoneStatusReleased, false},

		// Backwards
		{MilestoneStatusReleased, MilestoneStatusApproved, false},
		{MilestoneStatusApproved, MilestoneStatusFunded, false},
		{MilestoneStatusFunded, MilestoneStatusPending, false},

		{"nonexistent", MilestoneStatusFunded, false},
		{MilestoneStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidMilestoneTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidMilestoneTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllMilestoneStatusesHaveTransitionEntry(t *testing.T) {
	all := []string{MilestoneStatusPending, MilestoneStatusFunded, MilestoneStatusApproved, MilestoneStatusReleased}
	for _, status := range all {
		if _, ok := ValidMilestoneTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidMilestoneTransitions map", status)
		}
	}
	if n := len(ValidMilestoneTransitions[MilestoneStatusReleased]); n != 0 {
		t.Errorf("released should be terminal, has %d transitions", n)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		major float64
		minor int64
	}{
		{0.01, 10_000},
		{1, 1_000_000},
		{1234.567891, 1_234_567_891},
		{0.1 + 0.2, 300_000},
	}
	for _, tt := range tests {
		got, err := ToMinorUnits(tt.major)
		if err != nil || got != tt.minor {
			t.Errorf("ToMinorUnits(%v) = %d, %v; want %d", tt.major, got, err, tt.minor)
		}
	}
	if got := FromMinorUnits(2_500_000); got != 2.5 {
		t.Errorf("FromMinorUnits = %v, want 2.5", got)
	}
}

func TestSameWallet(t *testing.T) {
	if !SameWallet("0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001") {
		t.Errorf("expected case-insensitive match")
	}
	if SameWallet("", "") {
		t.Errorf("empty wallets must not match")
	}
}

func TestMinorUnitsRejectsOutOfRange(t *testing.T) {
	for _, major := range []float64{-0.01, MaxAmountMajor + 0.01, 1e14, math.MaxFloat64, math.Inf(1), math.NaN()} {
		got, err := ToMinorUnits(major)
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("ToMinorUnits(%v) = %d, %v; want validation error", major, got, err)
		}
	}
	got, err := ToMinorUnits(MaxAmountMajor)
	if err != nil || got != MaxAmountMajor*MinorUnitsPerMajor {
		t.Errorf("ToMinorUnits(max) = %d, %v", got, err)
	}
}
