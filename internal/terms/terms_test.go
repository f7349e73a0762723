package terms

import (
	"errors"
	"testing"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func consultingDoc() Document {
	return Document{
		TemplateType: TemplateConsulting,
		Deliverables: []Deliverable{
			{Name: "  Report ", Criteria: "PDF <delivered> & reviewed\n", DeadlineDays: 14, PercentageOfTotal: 100},
		},
		PaymentSchedule: PaymentSchedulePerDeliverable,
	}
}

func TestCanonicalize(t *testing.T) {
	want := `{"template_type":"consulting","deliverables":[{"name":"Report","criteria":"PDF <delivered> & reviewed","deadlineDays":14,"percentageOfTotal":100}],"payment_schedule":"per_deliverable","revision_limit":2,"auto_release_days":14}`
	require.Equal(t, want, string(Canonicalize(consultingDoc())))
}

func TestHashKnownVector(t *testing.T) {
	require.Equal(t, "0x63e0574f68da15dae7dcbd66ceab12cd92ebdac5782c0a33a87febef20b56f1f", Hash(consultingDoc()))
}

func TestHashDefaultsEqualExplicit(t *testing.T) {
	explicit := consultingDoc()
	explicit.RevisionLimit = intPtr(DefaultRevisionLimit)
	explicit.AutoReleaseDays = intPtr(DefaultAutoReleaseDays)
	require.Equal(t, Hash(consultingDoc()), Hash(explicit))
}

func TestHashIgnoresSurroundingWhitespace(t *testing.T) {
	a := consultingDoc()
	b := consultingDoc()
	b.Deliverables[0].Name = "Report"
	b.Deliverables[0].Criteria = "PDF <delivered> & reviewed"
	require.Equal(t, Hash(a), Hash(b))
}

func TestTrimmedTouchesOnlyFreeText(t *testing.T) {
	doc := consultingDoc()
	doc.TemplateType = " consulting "
	doc.PaymentSchedule = "per_deliverable\n"

	got := doc.Trimmed()
	require.Equal(t, " consulting ", got.TemplateType)
	require.Equal(t, "per_deliverable\n", got.PaymentSchedule)
	require.Equal(t, "Report", got.Deliverables[0].Name)
	require.Equal(t, "PDF <delivered> & reviewed", got.Deliverables[0].Criteria)
	require.Equal(t, "  Report ", doc.Deliverables[0].Name, "input is not modified")

	var fields []string
	for _, f := range Violations(doc) {
		fields = append(fields, f.Field)
	}
	require.ElementsMatch(t, []string{"template_type", "payment_schedule"}, fields)
}

func TestHashSensitiveToEveryField(t *testing.T) {
	base := Hash(consultingDoc())
	mutations := map[string]func(*Document){
		"template":     func(d *Document) { d.TemplateType = TemplateCustom },
		"name":         func(d *Document) { d.Deliverables[0].Name = "Report v2" },
		"criteria":     func(d *Document) { d.Deliverables[0].Criteria = "PDF delivered" },
		"deadline":     func(d *Document) { d.Deliverables[0].DeadlineDays = 15 },
		"percentage":   func(d *Document) { d.Deliverables[0].PercentageOfTotal = 99.5 },
		"revisions":    func(d *Document) { d.RevisionLimit = intPtr(3) },
		"auto_release": func(d *Document) { d.AutoReleaseDays = intPtr(30) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d := consultingDoc()
			mutate(&d)
			require.NotEqual(t, base, Hash(d))
		})
	}
}

func TestHashSensitiveToDeliverableOrder(t *testing.T) {
	tpl, ok := GetTemplate(TemplateWebDev)
	require.True(t, ok)
	doc := tpl.Document()
	swapped := tpl.Document()
	swapped.Deliverables[0], swapped.Deliverables[2] = swapped.Deliverables[2], swapped.Deliverables[0]
	require.NotEqual(t, Hash(doc), Hash(swapped))
}

func TestVerifyHash(t *testing.T) {
	doc := consultingDoc()
	require.True(t, VerifyHash(doc, "0x63E0574F68DA15DAE7DCBD66CEAB12CD92EBDAC5782C0A33A87FEBEF20B56F1F"))
	require.False(t, VerifyHash(doc, "0x00"))
}

func TestValidateTemplates(t *testing.T) {
	for _, tpl := range Templates() {
		err := Validate(tpl.Document())
		if tpl.ID == TemplateCustom {
			require.Error(t, err, "custom template has no deliverables")
			continue
		}
		require.NoError(t, err, tpl.ID)
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	doc := Document{
		TemplateType: "bespoke",
		Deliverables: []Deliverable{
			{Name: "   ", Criteria: "ok", DeadlineDays: 0, PercentageOfTotal: 50},
			{Name: "Second", Criteria: "ok", DeadlineDays: 400, PercentageOfTotal: 30},
		},
		PaymentSchedule: "upfront",
		RevisionLimit:   intPtr(11),
		AutoReleaseDays: intPtr(0),
	}

	err := Validate(doc)
	require.True(t, errors.Is(err, errs.ErrValidation))

	got := map[string]bool{}
	for _, f := range errs.FieldsOf(err) {
		got[f.Field] = true
	}
	for _, field := range []string{
		"template_type",
		"deliverables[0].name",
		"deliverables[0].deadlineDays",
		"deliverables[1].deadlineDays",
		"payment_schedule",
		"revision_limit",
		"auto_release_days",
		"deliverables",
	} {
		require.True(t, got[field], "missing violation for %s (got %v)", field, got)
	}
}

func TestValidateDeliverableLimits(t *testing.T) {
	doc := consultingDoc()
	doc.Deliverables = nil
	require.Error(t, Validate(doc))

	doc = consultingDoc()
	doc.Deliverables = make([]Deliverable, MaxDeliverables+1)
	for i := range doc.Deliverables {
		doc.Deliverables[i] = Deliverable{Name: "d", Criteria: "c", DeadlineDays: 1, PercentageOfTotal: 100.0 / float64(MaxDeliverables+1)}
	}
	err := Validate(doc)
	require.Error(t, err)
}

func TestValidatePercentageTolerance(t *testing.T) {
	doc := Document{
		TemplateType: TemplateCustom,
		Deliverables: []Deliverable{
			{Name: "a", Criteria: "a", DeadlineDays: 1, PercentageOfTotal: 33.33},
			{Name: "b", Criteria: "b", DeadlineDays: 1, PercentageOfTotal: 33.33},
			{Name: "c", Criteria: "c", DeadlineDays: 1, PercentageOfTotal: 33.34},
		},
		PaymentSchedule: PaymentSchedulePerDeliverable,
	}
	require.NoError(t, Validate(doc))

	doc.Deliverables[2].PercentageOfTotal = 33.3
	require.Error(t, Validate(doc))
}

func TestDeliverableAmounts(t *testing.T) {
	ds := []Deliverable{
		{PercentageOfTotal: 33.33},
		{PercentageOfTotal: 33.33},
		{PercentageOfTotal: 33.34},
	}
	amounts := DeliverableAmounts(1_000_001, ds)
	var sum int64
	for _, a := range amounts {
		sum += a
	}
	require.Equal(t, int64(1_000_001), sum)
	require.Equal(t, int64(333_300), amounts[0])

	require.Empty(t, DeliverableAmounts(100, nil))
}

func TestCriteriaHash(t *testing.T) {
	require.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		CriteriaHash("").Hex())
}
