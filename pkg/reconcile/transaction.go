package reconcile

import (
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

type billingKey struct {
	customer string
	year     int
	month    int
}

func readingKey(r source.MeterReading) billingKey { return billingKey{r.CustomerCode, r.Year, r.Month} }
func paymentKey(p source.Payment) billingKey      { return billingKey{p.CustomerCode, p.Year, p.Month} }

// billing is one row of the full outer join of readings and payments.
type billing struct {
	key     billingKey
	reading *source.MeterReading
	payment *source.Payment
}

// joinBilling full outer joins readings and payments on customer, year and
// month. Reading order is kept; unmatched payments follow in their order.
func joinBilling(readings []source.MeterReading, payments []source.Payment) []billing {
	byKey := make(map[billingKey]int, len(payments))
	for i, p := range payments {
		byKey[paymentKey(p)] = i
	}

	matched := make([]bool, len(payments))
	joined := make([]billing, 0, len(readings)+len(payments))

	for i := range readings {
		b := billing{key: readingKey(readings[i]), reading: &readings[i]}

		if j, ok := byKey[b.key]; ok {
			b.payment = &payments[j]
			matched[j] = true
		}

		joined = append(joined, b)
	}

	for j := range payments {
		if !matched[j] {
			joined = append(joined, billing{key: paymentKey(payments[j]), payment: &payments[j]})
		}
	}

	return joined
}

// AmountDue resolves a missing amount due: the amount paid when the penalty is
// zero, otherwise the amount paid less the penalty. It returns false when the
// amount stays unknown.
func AmountDue(due, paid, penalty *float64) (float64, bool) {
	if due != nil {
		return *due, true
	}

	if paid == nil || penalty == nil {
		return 0, false
	}

	if *penalty == 0 {
		return *paid, true
	}

	return *paid - *penalty, true
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}

	return *v
}

// ResolveTransactions builds new transaction facts from meter readings and
// payments. Readings and payments are each deduped per customer and month,
// joined, dated on the first of their month, and filtered against existing.
func ResolveTransactions(
	readings []source.MeterReading,
	payments []source.Payment,
	calendar CalendarIndex,
	existing warehouse.KeySet[warehouse.TransactionKey],
) (warehouse.Transactions, FactStats) {
	stats := FactStats{Candidates: len(readings) + len(payments)}

	readings, dupReadings := dedupBy(readings, readingKey)
	payments, dupPayments := dedupBy(payments, paymentKey)
	stats.Duplicates = dupReadings + dupPayments

	facts := make([]warehouse.Transaction, 0, len(readings))

	for _, b := range joinBilling(readings, payments) {
		if b.key.month < 1 || b.key.month > 12 {
			stats.Invalid++
			continue
		}

		timeID, ok := calendar.Lookup(period.Date(b.key.year, time.Month(b.key.month), 1))
		if !ok {
			stats.UnknownDate++
			continue
		}

		fact := warehouse.Transaction{CustomerCode: b.key.customer, TimeID: timeID}

		var due, paid, penalty *float64
		if b.reading != nil {
			fact.TariffCode = b.reading.TariffCode
			fact.Usage = valueOrZero(b.reading.Usage)
			due = b.reading.AmountDue
		}

		if b.payment != nil {
			paid, penalty = b.payment.AmountPaid, b.payment.Penalty
		}

		amount, ok := AmountDue(due, paid, penalty)
		if !ok {
			stats.Invalid++
			continue
		}

		fact.AmountDue = amount
		fact.AmountPaid = valueOrZero(paid)
		fact.Penalty = valueOrZero(penalty)

		facts = append(facts, fact)
	}

	out, loaded, dup := keepNew(facts, warehouse.Transaction.Key, existing)
	stats.Existing = loaded
	stats.Duplicates += dup
	stats.New = len(out)

	return out, stats
}
