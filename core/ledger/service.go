package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
)

var (
	// errors
	ErrStudentNotFound = core.NewNotFoundError("student not found")
	ErrDebtNotFound    = core.NewNotFoundError("debt not found")
	ErrUnknownPeriod   = errors.New("no billing period or enrollment matches this concept")

	// StudentOrderings maps the API ordering fields to their columns.
	StudentOrderings = map[string]string{
		"id":        "id",
		"name":      "name",
		"grade":     "grade",
		"createdAt": "created_at",
	}
	defaultStudentOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
)

type (
	// Repository is the ledger store. Students are always returned with their Debts and Payments.
	Repository interface {
		// WithinTx runs fn against a Repository bound to a single transaction.
		// The transaction is rolled back when fn returns an error; other readers never see its partial writes.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error

		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		DeleteStudent(ctx context.Context, id int64) error

		// GetOrCreateDebt returns the student's debt booked under debt.Concept, creating it if needed.
		GetOrCreateDebt(ctx context.Context, debt Debt) (d Debt, created bool, err error)
		GetDebt(ctx context.Context, id int64) (Debt, error)
		ListDebts(ctx context.Context, studentID int64) ([]Debt, error)
		DeleteDebtsByStudentID(ctx context.Context, studentID int64) (int, error)

		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		DeletePaymentsByDebtID(ctx context.Context, debtIDs []int64) (int, error)

		Totals(ctx context.Context) (Dashboard, error)
	}

	Service struct {
		repo    Repository
		billing core.BillingConfig
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		billing: conf.Billing,
		nowFunc: time.Now,
	}
}

// Today is the current time in the school's time zone.
func (svc *Service) Today() time.Time {
	loc := svc.billing.Location
	if loc == nil {
		loc = time.UTC
	}
	return svc.nowFunc().In(loc)
}

// Calendar returns the billing calendar of `year`.
func (svc *Service) Calendar(year int) Calendar {
	return NewCalendar(year, svc.billing.GraceMonths, svc.billing.Location)
}

// RegisterStudent creates a Student and, for new enrollees, its Enrollment Debt; both or neither are stored.
func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (Student, error) {
	st := Student{
		Name:          ns.Name,
		Phone:         ns.Phone,
		Guardian:      ns.Guardian,
		NationalID:    ns.NationalID,
		Age:           ns.Age,
		Grade:         ns.Grade,
		Section:       ns.Section,
		MonthlyRate:   svc.billing.DefaultMonthlyRate,
		IsNewEnrollee: ns.IsNewEnrollee,
		CreatedAt:     svc.nowFunc().UTC(),
	}
	if ns.MonthlyRate.Valid {
		st.MonthlyRate = ns.MonthlyRate.Decimal
	}

	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		var err error
		if st, err = repo.CreateStudent(ctx, st); err != nil {
			return errors.Wrap(err, "creating student")
		}
		if !st.IsNewEnrollee {
			return nil
		}
		debt, _, err := repo.GetOrCreateDebt(ctx, Debt{
			StudentID: st.ID,
			Concept:   EnrollmentConcept,
			Total:     svc.billing.EnrollmentFee,
			CreatedAt: st.CreatedAt,
		})
		if err != nil {
			return errors.Wrap(err, "creating enrollment debt")
		}
		st.Debts = append(st.Debts, debt)
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (svc *Service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// QueryStudents lists students (newest first by default) with their outstanding balance.
func (svc *Service) QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]StudentSummary, error) {
	ordering = core.CleanOrderings(ordering, StudentOrderings)
	if len(ordering) == 0 {
		ordering = defaultStudentOrdering
	}
	students, err := svc.repo.QueryStudents(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	summaries := make([]StudentSummary, 0, len(students))
	for _, st := range students {
		summaries = append(summaries, StudentSummary{Student: st, OutstandingBalance: OutstandingBalance(st)})
	}
	return summaries, nil
}

// DeleteStudent deletes the Student's Payments, then its Debts, then the Student, in one transaction.
func (svc *Service) DeleteStudent(ctx context.Context, id int64) error {
	return svc.repo.WithinTx(ctx, func(repo Repository) error {
		debts, err := repo.ListDebts(ctx, id)
		if err != nil {
			return errors.Wrap(err, "listing debts")
		}
		if len(debts) > 0 {
			ids := make([]int64, 0, len(debts))
			for _, d := range debts {
				ids = append(ids, d.ID)
			}
			if _, err = repo.DeletePaymentsByDebtID(ctx, ids); err != nil {
				return errors.Wrap(err, "deleting payments")
			}
			if _, err = repo.DeleteDebtsByStudentID(ctx, id); err != nil {
				return errors.Wrap(err, "deleting debts")
			}
		}
		return errors.Wrap(repo.DeleteStudent(ctx, id), "deleting student")
	})
}

func (svc *Service) ListDebts(ctx context.Context, studentID int64) ([]Debt, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.ListDebts(ctx, studentID)
}

// MaterializeDebt books a Debt for a Student. If a Debt with the same concept is already booked, it is returned as is.
func (svc *Service) MaterializeDebt(ctx context.Context, nd NewDebt) (Debt, bool, error) {
	var debt Debt
	var created bool

	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetStudent(ctx, nd.StudentID); err != nil {
			return err
		}
		var err error
		debt, created, err = repo.GetOrCreateDebt(ctx, Debt{
			StudentID: nd.StudentID,
			Concept:   svc.canonicalConcept(nd.Concept),
			Total:     nd.Amount,
			DueDate:   nd.DueDate,
			CreatedAt: svc.nowFunc().UTC(),
		})
		return errors.Wrap(err, "materializing debt")
	})
	if err != nil {
		return Debt{}, false, err
	}
	return debt, created, nil
}

// canonicalConcept spells tuition and enrollment concepts the way statements look them up.
func (svc *Service) canonicalConcept(concept string) string {
	concept = strings.TrimSpace(concept)
	if period, ok := svc.Calendar(svc.Today().Year()).PeriodByConcept(concept); ok {
		return period.Concept()
	}
	if strings.EqualFold(concept, EnrollmentConcept) {
		return EnrollmentConcept
	}
	return concept
}

// RecordPayment records a Payment against an existing Debt.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Payment, error) {
	if _, err := svc.repo.GetDebt(ctx, np.DebtID); err != nil {
		return Payment{}, err
	}
	pmt, err := svc.repo.CreatePayment(ctx, Payment{
		DebtID: np.DebtID,
		Amount: np.Amount,
		PaidAt: svc.nowFunc().UTC(),
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}
	return pmt, nil
}

// PayPeriod pays a statement line by concept: the period's Debt is materialized if needed and paid in the same transaction.
// Tuition periods are materialized at the student's monthly rate; the enrollment fee must already be booked.
func (svc *Service) PayPeriod(ctx context.Context, studentID int64, pp PeriodPayment) (Payment, error) {
	var pmt Payment
	now := svc.nowFunc()
	cal := svc.Calendar(svc.Today().Year())

	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		st, err := repo.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}

		var debt Debt
		if period, ok := cal.PeriodByConcept(pp.Concept); ok {
			due := cal.DueDate(period)
			debt, _, err = repo.GetOrCreateDebt(ctx, Debt{
				StudentID: st.ID,
				Concept:   period.Concept(),
				Total:     st.MonthlyRate,
				DueDate:   &due,
				CreatedAt: now.UTC(),
			})
			if err != nil {
				return errors.Wrap(err, "materializing debt")
			}
		} else if d, ok := st.FindDebt(EnrollmentConcept); ok && strings.EqualFold(pp.Concept, EnrollmentConcept) {
			debt = d
		} else {
			return core.NewValidationError(ErrUnknownPeriod, core.FieldError{Field: "concept", Error: ErrUnknownPeriod.Error()})
		}

		pmt, err = repo.CreatePayment(ctx, Payment{DebtID: debt.ID, Amount: pp.Amount, PaidAt: now.UTC()})
		return errors.Wrap(err, "creating payment")
	})
	if err != nil {
		return Payment{}, err
	}
	return pmt, nil
}

// Statement computes the Student's statement as of `today`, for the billing year `today` falls in.
func (svc *Service) Statement(ctx context.Context, studentID int64, today time.Time) ([]ScheduleItem, error) {
	st, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return ComputeStatement(st, today, svc.Calendar(today.Year())), nil
}

// Dashboard returns the school-wide totals of booked debts and payments.
func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	dash, err := svc.repo.Totals(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "computing totals")
	}
	dash.Outstanding = dash.Charged.Sub(dash.Collected)
	return dash, nil
}
