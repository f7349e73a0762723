package dto

import (
	"encoding/json"

	"github.com/arc-invoice/backend/internal/services"
)

type AuthNonceRequest struct {
	Wallet string `json:"wallet"`
}

type AuthWalletRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

// UpdateMilestoneRequest keeps proof_url raw so that an explicit null can be
// told apart from an absent field.
type UpdateMilestoneRequest struct {
	Status   *string         `json:"status,omitempty"`
	ProofURL json.RawMessage `json:"proof_url,omitempty"`
}

func (r UpdateMilestoneRequest) ToUpdate() (services.MilestoneUpdate, error) {
	upd := services.MilestoneUpdate{Status: r.Status}
	if len(r.ProofURL) == 0 {
		return upd, nil
	}
	upd.ProofURLSet = true
	if string(r.ProofURL) == "null" {
		return upd, nil
	}
	var u string
	if err := json.Unmarshal(r.ProofURL, &u); err != nil {
		return upd, err
	}
	upd.ProofURL = &u
	return upd, nil
}

type AttachEscrowRequest struct {
	TxHash string `json:"tx_hash"`
}

type LinkArbitrationRequest struct {
	ArbitrationDisputeID string `json:"arbitration_dispute_id"`
}
