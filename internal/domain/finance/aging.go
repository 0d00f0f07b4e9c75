package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgingScheme selects how days past due map to aging categories
type AgingScheme string

const (
	// AgingSchemeBinary splits open balances into current and overdue
	AgingSchemeBinary AgingScheme = "binary"
	// AgingSchemeStandard uses current, 1-30, 31-60, 61-90 and 90+ days past due
	AgingSchemeStandard AgingScheme = "standard"
)

// IsValid checks if the scheme is known
func (s AgingScheme) IsValid() bool {
	return s == AgingSchemeBinary || s == AgingSchemeStandard
}

// AgingCategory is the label of one aging bucket
type AgingCategory string

const (
	AgingCurrent AgingCategory = "current"
	AgingOverdue AgingCategory = "overdue"
	Aging1To30   AgingCategory = "1-30"
	Aging31To60  AgingCategory = "31-60"
	Aging61To90  AgingCategory = "61-90"
	AgingOver90  AgingCategory = "90+"
)

// Categories returns the scheme's categories in report order
func (s AgingScheme) Categories() []AgingCategory {
	if s == AgingSchemeStandard {
		return []AgingCategory{AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90}
	}
	return []AgingCategory{AgingCurrent, AgingOverdue}
}

// Bucket maps days past due to a category. Zero or negative days is current.
func (s AgingScheme) Bucket(daysPastDue int) AgingCategory {
	if daysPastDue <= 0 {
		return AgingCurrent
	}
	if s != AgingSchemeStandard {
		return AgingOverdue
	}
	switch {
	case daysPastDue <= 30:
		return Aging1To30
	case daysPastDue <= 60:
		return Aging31To60
	case daysPastDue <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// AgingEntry is the classification of one open document
type AgingEntry struct {
	DocumentID       uuid.UUID       `json:"document_id"`
	DocumentNumber   string          `json:"document_number"`
	Kind             DocumentKind    `json:"kind"`
	CounterpartyName string          `json:"counterparty_name"`
	DueDate          time.Time       `json:"due_date"`
	BalanceAmount    decimal.Decimal `json:"balance_amount"`
	DaysPastDue      int             `json:"days_past_due"`
	Category         AgingCategory   `json:"category"`
}

// AgingBucket aggregates the open balances of one category
type AgingBucket struct {
	Category AgingCategory   `json:"category"`
	Count    int             `json:"count"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  decimal.Decimal `json:"percent"` // share of total due, 0..100, 2 decimals
}

// AgingReport is the aggregated aging of a document snapshot
type AgingReport struct {
	AsOf     time.Time       `json:"as_of"`
	Scheme   AgingScheme     `json:"scheme"`
	TotalDue decimal.Decimal `json:"total_due"`
	Buckets  []AgingBucket   `json:"buckets"`
	Entries  []AgingEntry    `json:"entries"`
}

// AgingClassifier buckets open documents by age. It is pure: the same snapshot
// and as-of date always produce the same result.
type AgingClassifier struct {
	scheme AgingScheme
}

// AgingClassifierOption is a functional option for configuring AgingClassifier
type AgingClassifierOption func(*AgingClassifier)

// WithAgingScheme sets the bucket scheme; unknown schemes are ignored
func WithAgingScheme(scheme AgingScheme) AgingClassifierOption {
	return func(c *AgingClassifier) {
		if scheme.IsValid() {
			c.scheme = scheme
		}
	}
}

// NewAgingClassifier creates a classifier using the binary scheme by default
func NewAgingClassifier(opts ...AgingClassifierOption) *AgingClassifier {
	c := &AgingClassifier{scheme: AgingSchemeBinary}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme returns the classifier's scheme
func (c *AgingClassifier) Scheme() AgingScheme {
	return c.scheme
}

// Classify returns one entry per open document, in input order.
// Drafts, cancelled and fully paid documents are skipped.
func (c *AgingClassifier) Classify(docs []LedgerDocument, asOf time.Time) []AgingEntry {
	entries := make([]AgingEntry, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		if !isAgeable(d) {
			continue
		}
		days := DaysPastDue(d.DueDate, asOf)
		entries = append(entries, AgingEntry{
			DocumentID:       d.ID,
			DocumentNumber:   d.DocumentNumber,
			Kind:             d.Kind,
			CounterpartyName: d.CounterpartyName,
			DueDate:          d.DueDate,
			BalanceAmount:    d.BalanceAmount,
			DaysPastDue:      days,
			Category:         c.scheme.Bucket(days),
		})
	}
	return entries
}

// Report classifies docs and aggregates sum, count and percent per category.
// Every category of the scheme is present; percent is 0 when nothing is due.
func (c *AgingClassifier) Report(docs []LedgerDocument, asOf time.Time) AgingReport {
	entries := c.Classify(docs, asOf)
	categories := c.scheme.Categories()

	index := make(map[AgingCategory]int, len(categories))
	buckets := make([]AgingBucket, len(categories))
	for i, cat := range categories {
		index[cat] = i
		buckets[i] = AgingBucket{Category: cat, Amount: decimal.Zero, Percent: decimal.Zero}
	}

	total := decimal.Zero
	for _, e := range entries {
		b := &buckets[index[e.Category]]
		b.Count++
		b.Amount = b.Amount.Add(e.BalanceAmount)
		total = total.Add(e.BalanceAmount)
	}

	if total.IsPositive() {
		for i := range buckets {
			buckets[i].Percent = buckets[i].Amount.Div(total).Mul(hundred).Round(2)
		}
	}

	return AgingReport{
		AsOf:     asOf,
		Scheme:   c.scheme,
		TotalDue: total,
		Buckets:  buckets,
		Entries:  entries,
	}
}

func isAgeable(d *LedgerDocument) bool {
	if d.Status == DocumentStatusDraft || d.Status == DocumentStatusCancelled {
		return false
	}
	return d.BalanceAmount.IsPositive()
}
