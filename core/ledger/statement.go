package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusOverdue Status = "overdue"
	StatusPending Status = "pending"
)

// PaidTolerance absorbs rounding: a debt short of its total by less than this is paid.
var PaidTolerance = decimal.New(1, -1) // 0.1

// ScheduleItem is a line of a Student's statement of account.
type ScheduleItem struct {
	Concept    string          `json:"concept"`
	PeriodName string          `json:"periodName"`
	DueDate    Date            `json:"dueDate"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Balance    decimal.Decimal `json:"balance"`
	Status     Status          `json:"status"`
	DebtID     *int64          `json:"debtId"`
}

// IsVirtual reports whether the item has no persisted Debt yet.
func (item ScheduleItem) IsVirtual() bool {
	return item.DebtID == nil
}

func isPaid(paid, total decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(total.Sub(PaidTolerance))
}

// ComputeStatement derives a Student's statement for the calendar's billing year as of `today`.
// `st` must carry all its Debts with their Payments.
// Items come enrollment first (when booked), then the tuition periods in calendar order.
func ComputeStatement(st Student, today time.Time, cal Calendar) []ScheduleItem {
	day := DateOf(today)
	items := make([]ScheduleItem, 0, len(cal.Periods)+1)

	if debt, ok := st.FindDebt(EnrollmentConcept); ok {
		items = append(items, enrollmentItem(debt, cal))
	}

	for _, p := range cal.Periods {
		item := ScheduleItem{
			Concept:    p.Concept(),
			PeriodName: p.Name,
			DueDate:    cal.DueDate(p),
			Total:      st.MonthlyRate,
			Paid:       decimal.Zero,
		}
		if debt, ok := st.FindDebt(item.Concept); ok {
			id := debt.ID
			item.DebtID = &id
			item.Total = debt.Total
			item.Paid = debt.Paid()
		}
		item.Balance = item.Total.Sub(item.Paid)

		switch {
		case isPaid(item.Paid, item.Total):
			item.Status = StatusPaid
		case item.Paid.IsPositive():
			item.Status = StatusPartial
		case day.After(item.DueDate.Time):
			item.Status = StatusOverdue
		default:
			item.Status = StatusPending
		}
		items = append(items, item)
	}
	return items
}

// enrollmentItem is due on the debt's due date, or the day it was booked; it is either paid or overdue.
func enrollmentItem(debt Debt, cal Calendar) ScheduleItem {
	id := debt.ID
	item := ScheduleItem{
		Concept:    EnrollmentConcept,
		PeriodName: EnrollmentPeriodName,
		Total:      debt.Total,
		Paid:       debt.Paid(),
		DebtID:     &id,
	}
	if debt.DueDate != nil {
		item.DueDate = *debt.DueDate
	} else {
		item.DueDate = DateOf(debt.CreatedAt.In(cal.location()))
	}
	item.Balance = item.Total.Sub(item.Paid)
	if isPaid(item.Paid, item.Total) {
		item.Status = StatusPaid
	} else {
		item.Status = StatusOverdue
	}
	return item
}

// OutstandingBalance sums the student's booked debts minus their payments.
// Tuition periods without a Debt yet are not counted.
func OutstandingBalance(st Student) decimal.Decimal {
	charged, paid := decimal.Zero, decimal.Zero
	for _, d := range st.Debts {
		charged = charged.Add(d.Total)
		paid = paid.Add(d.Paid())
	}
	return charged.Sub(paid)
}
