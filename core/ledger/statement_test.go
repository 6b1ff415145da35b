package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 30, 0, 0, time.UTC)
}

func paidDebt(id int64, concept, total string, amounts ...string) Debt {
	d := Debt{ID: id, StudentID: 1, Concept: concept, Total: dec(total), CreatedAt: day(2024, time.February, 1)}
	for i, a := range amounts {
		d.Payments = append(d.Payments, Payment{ID: id*10 + int64(i), DebtID: id, Amount: dec(a)})
	}
	return d
}

func findItem(t *testing.T, items []ScheduleItem, concept string) ScheduleItem {
	t.Helper()
	for _, item := range items {
		if item.Concept == concept {
			return item
		}
	}
	t.Fatalf("no item %q in statement", concept)
	return ScheduleItem{}
}

func TestComputeStatement_virtualSchedule(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	st := Student{ID: 1, MonthlyRate: dec("300")}

	items := ComputeStatement(st, day(2024, time.February, 20), cal)
	require.Len(t, items, 10)

	months := []string{"March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}
	for i, item := range items {
		assert.Equal(t, "Tuition "+months[i], item.Concept)
		assert.Equal(t, months[i], item.PeriodName)
		assert.True(t, item.IsVirtual())
		assert.True(t, item.Total.Equal(dec("300")))
		assert.True(t, item.Paid.IsZero())
		assert.True(t, item.Balance.Equal(dec("300")))
		assert.Equal(t, StatusPending, item.Status)
	}
	assert.Equal(t, "2024-04-30", items[0].DueDate.String())
	assert.Equal(t, "2025-01-31", items[9].DueDate.String())
}

func TestComputeStatement_statuses(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	st := Student{
		ID:          1,
		MonthlyRate: dec("300"),
		Debts: []Debt{
			paidDebt(1, "Tuition March", "300", "300"),
			paidDebt(2, "Tuition April", "300", "100", "199.95"), // within tolerance
			paidDebt(3, "Tuition May", "300", "299.8"),           // short by more than the tolerance
			paidDebt(4, "Tuition August", "250"),                 // booked at a discounted rate
		},
	}
	items := ComputeStatement(st, day(2024, time.July, 5), cal)
	require.Len(t, items, 10)

	tests := []struct {
		concept    string
		wantStatus Status
		wantTotal  string
		wantPaid   string
		virtual    bool
	}{
		{concept: "Tuition March", wantStatus: StatusPaid, wantTotal: "300", wantPaid: "300"},
		{concept: "Tuition April", wantStatus: StatusPaid, wantTotal: "300", wantPaid: "299.95"},
		{concept: "Tuition May", wantStatus: StatusPartial, wantTotal: "300", wantPaid: "299.8"},
		{concept: "Tuition June", wantStatus: StatusPending, wantTotal: "300", wantPaid: "0", virtual: true},
		{concept: "Tuition July", wantStatus: StatusPending, wantTotal: "300", wantPaid: "0", virtual: true},
		{concept: "Tuition August", wantStatus: StatusPending, wantTotal: "250", wantPaid: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.concept, func(t *testing.T) {
			item := findItem(t, items, tt.concept)
			assert.Equal(t, tt.wantStatus, item.Status)
			assert.True(t, item.Total.Equal(dec(tt.wantTotal)), "total = %s", item.Total)
			assert.True(t, item.Paid.Equal(dec(tt.wantPaid)), "paid = %s", item.Paid)
			assert.True(t, item.Balance.Equal(item.Total.Sub(item.Paid)))
			assert.Equal(t, tt.virtual, item.IsVirtual())
		})
	}
}

func TestComputeStatement_overdue(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	st := Student{ID: 1, MonthlyRate: dec("300")}

	// May falls due on June 30, June on July 31
	items := ComputeStatement(st, day(2024, time.July, 5), cal)
	assert.Equal(t, StatusOverdue, findItem(t, items, "Tuition March").Status)
	assert.Equal(t, StatusOverdue, findItem(t, items, "Tuition May").Status)
	assert.Equal(t, StatusPending, findItem(t, items, "Tuition June").Status)

	// still pending on the due date itself
	items = ComputeStatement(st, day(2024, time.June, 30), cal)
	assert.Equal(t, StatusPending, findItem(t, items, "Tuition May").Status)
	items = ComputeStatement(st, day(2024, time.July, 1), cal)
	assert.Equal(t, StatusOverdue, findItem(t, items, "Tuition May").Status)

	// a partial payment is never overdue
	st.Debts = []Debt{paidDebt(1, "Tuition March", "300", "50")}
	items = ComputeStatement(st, day(2024, time.December, 1), cal)
	assert.Equal(t, StatusPartial, findItem(t, items, "Tuition March").Status)
}

func TestComputeStatement_noGraceMonths(t *testing.T) {
	cal := NewCalendar(2024, 0, time.UTC)
	st := Student{ID: 1, MonthlyRate: dec("300")}

	items := ComputeStatement(st, day(2024, time.April, 1), cal)
	march := findItem(t, items, "Tuition March")
	assert.Equal(t, "2024-03-31", march.DueDate.String())
	assert.Equal(t, StatusOverdue, march.Status)
	assert.Equal(t, StatusPending, findItem(t, items, "Tuition April").Status)
}

func TestComputeStatement_enrollment(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	enrollment := paidDebt(9, EnrollmentConcept, "100")
	enrollment.CreatedAt = time.Date(2024, time.February, 10, 15, 0, 0, 0, time.UTC)

	st := Student{
		ID:          1,
		MonthlyRate: dec("300"),
		// stored after a tuition debt
		Debts: []Debt{paidDebt(1, "Tuition March", "300"), enrollment},
	}

	items := ComputeStatement(st, day(2024, time.February, 11), cal)
	require.Len(t, items, 11)
	first := items[0]
	assert.Equal(t, EnrollmentConcept, first.Concept)
	assert.Equal(t, EnrollmentPeriodName, first.PeriodName)
	assert.Equal(t, "2024-02-10", first.DueDate.String())
	assert.Equal(t, StatusOverdue, first.Status)
	require.NotNil(t, first.DebtID)
	assert.Equal(t, int64(9), *first.DebtID)
	assert.Equal(t, "Tuition March", items[1].Concept)

	// enrollment is either paid or overdue, even before it falls due
	due := NewDate(2024, time.March, 15)
	st.Debts[1].DueDate = &due
	items = ComputeStatement(st, day(2024, time.February, 11), cal)
	assert.Equal(t, "2024-03-15", items[0].DueDate.String())
	assert.Equal(t, StatusOverdue, items[0].Status)

	st.Debts[1].Payments = []Payment{{ID: 1, DebtID: 9, Amount: dec("40")}, {ID: 2, DebtID: 9, Amount: dec("59.95")}}
	items = ComputeStatement(st, day(2024, time.February, 11), cal)
	assert.Equal(t, StatusPaid, items[0].Status)
}

func TestComputeStatement_enrollmentDueDateInSchoolTimeZone(t *testing.T) {
	lima := time.FixedZone("PET", -5*60*60)
	cal := NewCalendar(2024, 1, lima)
	enrollment := paidDebt(1, EnrollmentConcept, "100")
	enrollment.CreatedAt = time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC) // Feb 29 in Lima

	items := ComputeStatement(Student{MonthlyRate: dec("300"), Debts: []Debt{enrollment}}, day(2024, time.March, 1), cal)
	assert.Equal(t, "2024-02-29", items[0].DueDate.String())
}

func TestComputeStatement_idempotent(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	st := Student{
		ID:          1,
		MonthlyRate: dec("300"),
		Debts:       []Debt{paidDebt(1, EnrollmentConcept, "100", "100"), paidDebt(2, "Tuition March", "300", "120")},
	}
	today := day(2024, time.May, 2)
	assert.Equal(t, ComputeStatement(st, today, cal), ComputeStatement(st, today, cal))
}

func TestComputeStatement_paymentsNeverReduceProgress(t *testing.T) {
	cal := NewCalendar(2024, 1, time.UTC)
	today := day(2024, time.September, 1)
	rank := map[Status]int{StatusOverdue: 0, StatusPending: 0, StatusPartial: 1, StatusPaid: 2}

	debt := paidDebt(1, "Tuition March", "300")
	prev := findItem(t, ComputeStatement(Student{MonthlyRate: dec("300"), Debts: []Debt{debt}}, today, cal), "Tuition March")
	for i, amount := range []string{"50", "100", "149.95", "10"} {
		debt.Payments = append(debt.Payments, Payment{ID: int64(i + 1), DebtID: 1, Amount: dec(amount)})
		item := findItem(t, ComputeStatement(Student{MonthlyRate: dec("300"), Debts: []Debt{debt}}, today, cal), "Tuition March")
		assert.GreaterOrEqual(t, rank[item.Status], rank[prev.Status])
		assert.True(t, item.Paid.GreaterThan(prev.Paid))
		prev = item
	}
	assert.Equal(t, StatusPaid, prev.Status)
	assert.True(t, prev.Balance.IsNegative(), "overpaid balance = %s", prev.Balance)
}

func TestOutstandingBalance(t *testing.T) {
	st := Student{
		MonthlyRate: dec("300"),
		Debts: []Debt{
			paidDebt(1, EnrollmentConcept, "100", "100"),
			paidDebt(2, "Tuition March", "300", "120.50"),
			paidDebt(3, "Tuition April", "300"),
		},
	}
	assert.True(t, OutstandingBalance(st).Equal(dec("479.50")), "got %s", OutstandingBalance(st))
	assert.True(t, OutstandingBalance(Student{MonthlyRate: dec("300")}).IsZero())
}

func TestCalendar(t *testing.T) {
	cal := NewCalendar(2023, 1, nil)
	require.Len(t, cal.Periods, 10)
	assert.Equal(t, time.UTC, cal.Location)

	p, ok := cal.PeriodByConcept("  tuition FEBRUARY ")
	assert.False(t, ok)
	p, ok = cal.PeriodByConcept("tuition november")
	require.True(t, ok)
	assert.Equal(t, time.November, p.Month)
	assert.Equal(t, "Tuition November", p.Concept())
	assert.Equal(t, "2023-12-31", cal.DueDate(p).String())

	// February of a leap year
	leap := NewCalendar(2024, 0, time.UTC)
	assert.Equal(t, "2024-02-29", leap.DueDate(Period{Month: time.February, Name: "February"}).String())
	_, ok = leap.PeriodByConcept(EnrollmentConcept)
	assert.False(t, ok)
}
