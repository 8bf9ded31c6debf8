package billing

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

// NumberPattern matches every number produced by NumberGenerator.
var NumberPattern = regexp.MustCompile(`^INV-\d{6}-\d{3}$`)

// NumberGenerator hands out human-readable invoice numbers of the form
// INV-YYYYMM-RRR. The suffix is random in [0,999] and is not checked against
// existing invoices, so two invoices of the same month may collide.
type NumberGenerator struct {
	Now  func() time.Time
	Intn func(n int) int
}

// NewNumberGenerator uses the wall clock and math/rand/v2.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{Now: time.Now, Intn: rand.IntN}
}

// Next returns a fresh invoice number.
func (g *NumberGenerator) Next() string {
	now, intn := time.Now, rand.IntN
	if g != nil && g.Now != nil {
		now = g.Now
	}
	if g != nil && g.Intn != nil {
		intn = g.Intn
	}
	return FormatNumber(now(), intn(1000))
}

// FormatNumber renders the number for a creation time and random suffix.
func FormatNumber(t time.Time, suffix int) string {
	return fmt.Sprintf("INV-%04d%02d-%03d", t.Year(), int(t.Month()), suffix%1000)
}
