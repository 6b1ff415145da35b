package ledger

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/cuota/core"
)

func init() {
	// amounts are sent to the dashboard as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Student struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Guardian      string          `json:"guardian"`
	NationalID    string          `json:"nationalId"`
	Age           *int            `json:"age"`
	Grade         string          `json:"grade"`
	Section       string          `json:"section"`
	MonthlyRate   decimal.Decimal `json:"monthlyRate"`
	IsNewEnrollee bool            `json:"isNewEnrollee"`
	CreatedAt     time.Time       `json:"createdAt"` // UTC
	Debts         []Debt          `json:"debts"`
}

// FindDebt returns the first debt booked under `concept`.
func (st Student) FindDebt(concept string) (Debt, bool) {
	for _, d := range st.Debts {
		if d.Concept == concept {
			return d, true
		}
	}
	return Debt{}, false
}

type Debt struct {
	ID        int64           `json:"id"`
	StudentID int64           `json:"studentId"`
	Concept   string          `json:"concept"`
	Total     decimal.Decimal `json:"total"`
	DueDate   *Date           `json:"dueDate"`
	CreatedAt time.Time       `json:"createdAt"` // UTC
	Payments  []Payment       `json:"payments"`
}

// Paid sums the debt's payments.
func (d Debt) Paid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range d.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Balance is negative when the debt was overpaid.
func (d Debt) Balance() decimal.Decimal {
	return d.Total.Sub(d.Paid())
}

type Payment struct {
	ID     int64           `json:"id"`
	DebtID int64           `json:"debtId"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt time.Time       `json:"paidAt"` // UTC
}

// StudentSummary is a Student as shown in the students listing.
type StudentSummary struct {
	Student
	OutstandingBalance decimal.Decimal `json:"saldo_pendiente"`
}

// Dashboard holds the school-wide totals.
type Dashboard struct {
	Students    int             `json:"students" boil:"students"`
	Charged     decimal.Decimal `json:"charged" boil:"charged"`
	Collected   decimal.Decimal `json:"collected" boil:"collected"`
	Outstanding decimal.Decimal `json:"outstanding" boil:"-"`
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	Name          string              `json:"name" validate:"required"`
	Phone         string              `json:"phone"`
	Guardian      string              `json:"guardian"`
	NationalID    string              `json:"nationalId"`
	Age           *int                `json:"age" validate:"omitempty,gte=0,lte=120"`
	Grade         string              `json:"grade"`
	Section       string              `json:"section"`
	IsNewEnrollee bool                `json:"isNewEnrollee"`
	MonthlyRate   decimal.NullDecimal `json:"monthlyRate" validate:"omitempty,gt=0,currency"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Guardian = core.CleanString(ns.Guardian)
	ns.NationalID = core.CleanString(ns.NationalID)
	ns.Grade = core.CleanString(ns.Grade)
	ns.Section = core.CleanString(ns.Section)
	return validate.Struct(ns)
}

// NewDebt materializes a Debt for a Student.
type NewDebt struct {
	StudentID int64           `json:"studentId" validate:"required"`
	Concept   string          `json:"concept" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gte=0,currency"`
	DueDate   *Date           `json:"dueDate"`
}

func (nd *NewDebt) Validate(validate *validator.Validate) error {
	nd.Concept = core.CleanString(nd.Concept)
	return validate.Struct(nd)
}

// NewPayment records a Payment against an existing Debt.
type NewPayment struct {
	DebtID int64           `json:"debtId" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0,currency"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	return validate.Struct(np)
}

// PeriodPayment pays a statement line by its concept, materializing its Debt if needed.
type PeriodPayment struct {
	Concept string          `json:"concept" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required,gt=0,currency"`
}

func (pp *PeriodPayment) Validate(validate *validator.Validate) error {
	pp.Concept = core.CleanString(pp.Concept)
	return validate.Struct(pp)
}

type QueryFilter struct {
	Grade  string `query:"grade"`
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Grade == "" && qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Grade = core.CleanString(qf.Grade)
	qf.Search = core.CleanString(qf.Search)
}
