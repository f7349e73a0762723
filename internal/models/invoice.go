package models

import (
	"math"
	"strings"
	"time"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/google/uuid"
)

// Payment types
const (
	PaymentTypeDirect = "direct"
	PaymentTypeEscrow = "escrow"
)

// Contract versions. The legacy milestone factory is only reachable through
// the address book; new invoices never select it.
const (
	ContractVersionSimple          = 1
	ContractVersionLegacyMilestone = 2
	ContractVersionMilestone       = 3
	ContractVersionTerms           = 4
	ContractVersionYield           = 5
)

// Invoice statuses
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusFunded    = "funded"
	InvoiceStatusReleased  = "released"
	InvoiceStatusRefunded  = "refunded"
	InvoiceStatusDisputed  = "disputed"
	InvoiceStatusCancelled = "cancelled"
)

const (
	DefaultAutoReleaseDays = 14

	// MinorUnitsPerMajor is the stablecoin scale: 6 decimals.
	MinorUnitsPerMajor = 1_000_000

	// MaxAmountMajor bounds every stored amount. Its minor-unit form, with
	// any payer fee on top, stays far below MaxInt64.
	MaxAmountMajor = 1_000_000_000
)

// ToMinorUnits converts a major-unit amount for storage or the chain. NaN,
// infinities, negative values and anything above MaxAmountMajor are rejected.
func ToMinorUnits(major float64) (int64, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) || major < 0 || major > MaxAmountMajor {
		return 0, errs.New(errs.KindValidation, "amount %g is out of range [0, %d]", major, MaxAmountMajor)
	}
	return int64(math.Round(major * MinorUnitsPerMajor)), nil
}

func FromMinorUnits(minor int64) float64 {
	return float64(minor) / MinorUnitsPerMajor
}

// NormalizeWallet lowercases a hex wallet address for storage and comparison.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameWallet compares two addresses case-insensitively.
func SameWallet(a, b string) bool {
	return a != "" && b != "" && NormalizeWallet(a) == NormalizeWallet(b)
}

type Invoice struct {
	ID                 uuid.UUID `json:"id"`
	ShortCode          string    `json:"short_code"`
	CreatorWallet      string    `json:"creator_wallet"`
	AmountMinor        int64     `json:"-"`
	Description        string    `json:"description"`
	PaymentType        string    `json:"payment_type"`
	ClientName         *string   `json:"client_name,omitempty"`
	ClientEmail        *string   `json:"client_email,omitempty"`
	ContractVersion    int       `json:"contract_version"`
	Status             string    `json:"status"`
	AutoReleaseDays    int       `json:"auto_release_days"`
	YieldEscrowEnabled bool      `json:"yield_escrow_enabled"`
	EscrowAddress      *string   `json:"escrow_address,omitempty"`
	// IDHash is keccak256 of the id string; factories index escrows by it.
	IDHash    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Invoice) IsCreator(wallet string) bool {
	return SameWallet(i.CreatorWallet, wallet)
}

func (i *Invoice) IsTermsBased() bool {
	return i.ContractVersion == ContractVersionTerms
}

func (i *Invoice) IsMilestoneBased() bool {
	return i.ContractVersion == ContractVersionMilestone || i.ContractVersion == ContractVersionLegacyMilestone
}
