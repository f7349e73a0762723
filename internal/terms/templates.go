package terms

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type Template struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name"`
	Description            string        `json:"description"`
	DefaultDeliverables    []Deliverable `json:"defaultDeliverables"`
	DefaultPaymentSchedule string        `json:"defaultPaymentSchedule"`
	DefaultRevisions       int           `json:"defaultRevisions"`
	DefaultAutoReleaseDays int           `json:"defaultAutoReleaseDays"`
}

var templates = []Template{
	{
		ID:          TemplateWebDev,
		Name:        "Web Development",
		Description: "For website or web app projects",
		DefaultDeliverables: []Deliverable{
			{Name: "Design mockup", Criteria: "Figma/design file delivered with specified screens", DeadlineDays: 7, PercentageOfTotal: 20},
			{Name: "Development", Criteria: "Deployed to staging URL, all features functional", DeadlineDays: 21, PercentageOfTotal: 60},
			{Name: "Final delivery", Criteria: "All revisions addressed, deployed to production", DeadlineDays: 7, PercentageOfTotal: 20},
		},
		DefaultPaymentSchedule: PaymentSchedulePerDeliverable,
		DefaultRevisions:       2,
		DefaultAutoReleaseDays: 14,
	},
	{
		ID:          TemplateDesign,
		Name:        "Design Work",
		Description: "For logos, graphics, UI design",
		DefaultDeliverables: []Deliverable{
			{Name: "Initial concepts", Criteria: "3 concept variations delivered", DeadlineDays: 5, PercentageOfTotal: 40},
			{Name: "Final delivery", Criteria: "Selected concept with source files (AI/PSD/Figma)", DeadlineDays: 7, PercentageOfTotal: 60},
		},
		DefaultPaymentSchedule: PaymentSchedulePerDeliverable,
		DefaultRevisions:       3,
		DefaultAutoReleaseDays: 7,
	},
	{
		ID:          TemplateConsulting,
		Name:        "Consulting/Advisory",
		Description: "For hourly or project-based consulting",
		DefaultDeliverables: []Deliverable{
			{Name: "Deliverable", Criteria: "Report/presentation/document delivered", DeadlineDays: 14, PercentageOfTotal: 100},
		},
		DefaultPaymentSchedule: PaymentSchedulePerDeliverable,
		DefaultRevisions:       1,
		DefaultAutoReleaseDays: 7,
	},
	{
		ID:                     TemplateCustom,
		Name:                   "Custom",
		Description:            "Define your own terms",
		DefaultDeliverables:    []Deliverable{},
		DefaultPaymentSchedule: PaymentSchedulePerDeliverable,
		DefaultRevisions:       2,
		DefaultAutoReleaseDays: 14,
	},
}

// Templates returns a copy of the built-in templates.
func Templates() []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		t.DefaultDeliverables = append([]Deliverable{}, t.DefaultDeliverables...)
		out[i] = t
	}
	return out
}

func GetTemplate(id string) (Template, bool) {
	for _, t := range Templates() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Document builds a terms document prefilled from the template.
func (t Template) Document() Document {
	revisions := t.DefaultRevisions
	autoRelease := t.DefaultAutoReleaseDays
	return Document{
		TemplateType:    t.ID,
		Deliverables:    append([]Deliverable{}, t.DefaultDeliverables...),
		PaymentSchedule: t.DefaultPaymentSchedule,
		RevisionLimit:   &revisions,
		AutoReleaseDays: &autoRelease,
	}
}

// DeliverableAmounts splits totalMinor across deliverables by percentage.
// Each share is rounded; the rounding remainder goes to the last deliverable
// so the shares always sum to totalMinor.
func DeliverableAmounts(totalMinor int64, deliverables []Deliverable) []int64 {
	out := make([]int64, len(deliverables))
	if len(deliverables) == 0 {
		return out
	}
	var sum int64
	for i, d := range deliverables {
		out[i] = int64(math.Round(d.PercentageOfTotal / 100 * float64(totalMinor)))
		sum += out[i]
	}
	out[len(out)-1] += totalMinor - sum
	return out
}

// CriteriaHash is the on-chain commitment to a deliverable's criteria text.
func CriteriaHash(criteria string) common.Hash {
	return crypto.Keccak256Hash([]byte(criteria))
}
