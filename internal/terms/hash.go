package terms

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Field order of these structs is the canonical key order. Do not reorder.
type canonicalDeliverable struct {
	Name              string  `json:"name"`
	Criteria          string  `json:"criteria"`
	DeadlineDays      int     `json:"deadlineDays"`
	PercentageOfTotal float64 `json:"percentageOfTotal"`
}

type canonicalDocument struct {
	TemplateType    string                 `json:"template_type"`
	Deliverables    []canonicalDeliverable `json:"deliverables"`
	PaymentSchedule string                 `json:"payment_schedule"`
	RevisionLimit   int                    `json:"revision_limit"`
	AutoReleaseDays int                    `json:"auto_release_days"`
}

// Canonicalize serializes doc deterministically: fixed key order, trimmed
// free text, defaults applied, no HTML escaping and no trailing newline.
func Canonicalize(doc Document) []byte {
	t := doc.Trimmed()
	c := canonicalDocument{
		TemplateType:    t.TemplateType,
		Deliverables:    make([]canonicalDeliverable, 0, len(t.Deliverables)),
		PaymentSchedule: t.PaymentSchedule,
		RevisionLimit:   t.RevisionLimitOrDefault(),
		AutoReleaseDays: t.AutoReleaseDaysOrDefault(),
	}
	for _, d := range t.Deliverables {
		c.Deliverables = append(c.Deliverables, canonicalDeliverable(d))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only strings, ints and finite floats: Encode cannot fail.
	_ = enc.Encode(c)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// Hash returns the 0x-prefixed lowercase keccak-256 of the canonical form.
func Hash(doc Document) string {
	return hexutil.Encode(crypto.Keccak256(Canonicalize(doc)))
}

// VerifyHash reports whether doc hashes to expected. Hex case is ignored.
func VerifyHash(doc Document, expected string) bool {
	return strings.EqualFold(Hash(doc), expected)
}
