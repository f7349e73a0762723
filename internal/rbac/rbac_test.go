package rbac

import (
	"testing"

	"github.com/arc-invoice/backend/internal/models"
)

func TestRoleFor(t *testing.T) {
	inv := &models.Invoice{CreatorWallet: "0xcreator"}
	sigs := []models.TermSignature{
		{SignerWallet: "0xcreator", SignerRole: models.SignerRoleCreator},
		{SignerWallet: "0xpayer", SignerRole: models.SignerRolePayer},
	}

	tests := []struct {
		wallet string
		want   string
	}{
		{"0xCREATOR", RoleCreator},
		{"0xPayer", RolePayer},
		{"0xstranger", RoleViewer},
		{"", RoleViewer},
	}
	for _, tt := range tests {
		if got := RoleFor(inv, sigs, tt.wallet); got != tt.want {
			t.Errorf("RoleFor(%q) = %q, want %q", tt.wallet, got, tt.want)
		}
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role, perm string
		want       bool
	}{
		{RoleCreator, PermSubmitProof, true},
		{RolePayer, PermSubmitProof, false},
		{RolePayer, PermOpenDispute, true},
		{RoleViewer, PermOpenDispute, false},
		{RoleViewer, PermSignTerms, true},
		{"unknown", PermViewInvoice, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
