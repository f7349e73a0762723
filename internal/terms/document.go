// Package terms canonicalizes, hashes and validates structured escrow terms.
package terms

import "strings"

// Template types
const (
	TemplateWebDev     = "web_dev"
	TemplateDesign     = "design"
	TemplateConsulting = "consulting"
	TemplateCustom     = "custom"
)

const (
	PaymentSchedulePerDeliverable = "per_deliverable"

	DefaultRevisionLimit   = 2
	DefaultAutoReleaseDays = 14
	MaxDeliverables        = 10
)

type Deliverable struct {
	Name              string  `json:"name" validate:"required,max=100"`
	Criteria          string  `json:"criteria" validate:"required,max=500"`
	DeadlineDays      int     `json:"deadlineDays" validate:"gte=1,lte=365"`
	PercentageOfTotal float64 `json:"percentageOfTotal" validate:"gte=1,lte=100"`
}

// Document is the structured terms attached to a terms-based escrow invoice.
type Document struct {
	TemplateType    string        `json:"template_type" validate:"oneof=web_dev design consulting custom"`
	Deliverables    []Deliverable `json:"deliverables" validate:"min=1,max=10,dive"`
	PaymentSchedule string        `json:"payment_schedule" validate:"eq=per_deliverable"`
	RevisionLimit   *int          `json:"revision_limit,omitempty" validate:"omitempty,gte=0,lte=10"`
	AutoReleaseDays *int          `json:"auto_release_days,omitempty" validate:"omitempty,gte=1,lte=90"`
}

// Trimmed returns a copy with deliverable names and criteria trimmed.
// Enumerated fields are left as given. Deliverable order is kept.
func (d Document) Trimmed() Document {
	out := d
	out.Deliverables = make([]Deliverable, len(d.Deliverables))
	for i, del := range d.Deliverables {
		del.Name = strings.TrimSpace(del.Name)
		del.Criteria = strings.TrimSpace(del.Criteria)
		out.Deliverables[i] = del
	}
	return out
}

func (d Document) RevisionLimitOrDefault() int {
	if d.RevisionLimit == nil {
		return DefaultRevisionLimit
	}
	return *d.RevisionLimit
}

func (d Document) AutoReleaseDaysOrDefault() int {
	if d.AutoReleaseDays == nil {
		return DefaultAutoReleaseDays
	}
	return *d.AutoReleaseDays
}
