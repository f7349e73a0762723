package rbac

import "github.com/arc-invoice/backend/internal/models"

// Invoice party roles
const (
	RoleCreator = "creator"
	RolePayer   = "payer"
	RoleViewer  = "viewer"
)

// Permission constants
const (
	PermViewInvoice      = "view_invoice"
	PermSignTerms        = "sign_terms"
	PermSubmitProof      = "submit_proof"
	PermAdvanceMilestone = "advance_milestone"
	PermAttachEscrow     = "attach_escrow"
	PermOpenDispute      = "open_dispute"
	PermLinkArbitration  = "link_arbitration"
)

// RolePermissions defines what each role can do on an invoice.
var RolePermissions = map[string][]string{
	RoleCreator: {
		PermViewInvoice, PermSubmitProof, PermAdvanceMilestone, PermAttachEscrow,
		PermOpenDispute, PermLinkArbitration,
	},
	RolePayer: {
		PermViewInvoice, PermSignTerms, PermOpenDispute, PermLinkArbitration,
	},
	RoleViewer: {
		PermViewInvoice, PermSignTerms,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// RoleFor resolves the caller's role on an invoice. A wallet that recorded a
// payer signature is the payer; any other wallet only views.
func RoleFor(inv *models.Invoice, sigs []models.TermSignature, wallet string) string {
	if wallet == "" {
		return RoleViewer
	}
	if inv.IsCreator(wallet) {
		return RoleCreator
	}
	for _, s := range sigs {
		if s.SignerRole == models.SignerRolePayer && models.SameWallet(s.SignerWallet, wallet) {
			return RolePayer
		}
	}
	return RoleViewer
}
