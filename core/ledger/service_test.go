package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/storage/database/inmem"
	"github.com/trezcool/cuota/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*ledger.Service, ledger.Repository) {
	t.Helper()
	repo := inmemdb.NewLedgerRepository(inmemdb.Open())
	return ledger.NewService(repo, core.NewTestConfig()), repo
}

func TestService_RegisterStudent(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	st, err := svc.RegisterStudent(ctx, ledger.NewStudent{Name: "Ana Quispe", Grade: "3", IsNewEnrollee: true})
	require.NoError(t, err)
	assert.NotZero(t, st.ID)
	assert.True(t, st.MonthlyRate.Equal(dec("300")), "default monthly rate")
	require.Len(t, st.Debts, 1)
	assert.Equal(t, ledger.EnrollmentConcept, st.Debts[0].Concept)
	assert.True(t, st.Debts[0].Total.Equal(dec("100")))

	stored, err := repo.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, stored.Debts, 1)

	returning, err := svc.RegisterStudent(ctx, ledger.NewStudent{
		Name:        "Luis Mamani",
		MonthlyRate: decimal.NewNullDecimal(dec("250")),
	})
	require.NoError(t, err)
	assert.Empty(t, returning.Debts)
	assert.True(t, returning.MonthlyRate.Equal(dec("250")))
}

func TestService_QueryStudents(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	now := time.Now()
	st1 := testutil.CreateStudent(t, repo, "Ana", "1", "300", now.Add(-3*time.Hour))
	st2 := testutil.CreateStudent(t, repo, "Beto", "2", "300", now.Add(-2*time.Hour))
	st3 := testutil.CreateStudent(t, repo, "Carla", "1", "200", now.Add(-1*time.Hour))

	d := testutil.CreateDebt(t, repo, st1.ID, "Tuition March", "300", nil)
	testutil.CreatePayment(t, repo, d.ID, "120")
	testutil.CreateDebt(t, repo, st1.ID, ledger.EnrollmentConcept, "100", nil)
	d = testutil.CreateDebt(t, repo, st3.ID, "Tuition March", "200", nil)
	testutil.CreatePayment(t, repo, d.ID, "200")

	ids := func(summaries []ledger.StudentSummary) []int64 {
		out := make([]int64, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, s.ID)
		}
		return out
	}

	all, err := svc.QueryStudents(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{st3.ID, st2.ID, st1.ID}, ids(all), "newest first")
	assert.True(t, all[2].OutstandingBalance.Equal(dec("280")), "got %s", all[2].OutstandingBalance)
	assert.True(t, all[1].OutstandingBalance.IsZero())
	assert.True(t, all[0].OutstandingBalance.IsZero())

	byGrade, err := svc.QueryStudents(ctx, &ledger.QueryFilter{Grade: "1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{st3.ID, st1.ID}, ids(byGrade))

	search, err := svc.QueryStudents(ctx, &ledger.QueryFilter{Search: "ARL"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{st3.ID}, ids(search))

	byName, err := svc.QueryStudents(ctx, nil, []core.DBOrdering{{Field: "unknown"}, {Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []int64{st1.ID, st2.ID, st3.ID}, ids(byName))
}

func TestService_DeleteStudent(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")
	other := testutil.CreateStudent(t, repo, "Beto", "1", "300")
	d1 := testutil.CreateDebt(t, repo, st.ID, ledger.EnrollmentConcept, "100", nil)
	d2 := testutil.CreateDebt(t, repo, st.ID, "Tuition March", "300", nil)
	testutil.CreatePayment(t, repo, d1.ID, "100")
	testutil.CreatePayment(t, repo, d2.ID, "100")
	testutil.CreatePayment(t, repo, d2.ID, "50")
	od := testutil.CreateDebt(t, repo, other.ID, "Tuition March", "300", nil)
	testutil.CreatePayment(t, repo, od.ID, "300")

	require.NoError(t, svc.DeleteStudent(ctx, st.ID))

	_, err := svc.GetStudent(ctx, st.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = repo.GetDebt(ctx, d1.ID)
	assert.Equal(t, ledger.ErrDebtNotFound, err)
	_, err = repo.GetDebt(ctx, d2.ID)
	assert.Equal(t, ledger.ErrDebtNotFound, err)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Students)
	assert.True(t, dash.Charged.Equal(dec("300")))
	assert.True(t, dash.Collected.Equal(dec("300")))

	assert.True(t, core.IsNotFound(svc.DeleteStudent(ctx, st.ID)))
}

func TestService_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")
	d := testutil.CreateDebt(t, repo, st.ID, "Tuition March", "300", nil)
	testutil.CreatePayment(t, repo, d.ID, "100")

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx ledger.Repository) error {
		if _, err := tx.DeletePaymentsByDebtID(ctx, []int64{d.ID}); err != nil {
			return err
		}
		if _, err := tx.DeleteDebtsByStudentID(ctx, st.ID); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	stored, err := svc.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, stored.Debts, 1)
	require.Len(t, stored.Debts[0].Payments, 1)
	assert.True(t, stored.Debts[0].Paid().Equal(dec("100")))
}

func TestService_MaterializeDebt(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")

	due := ledger.NewDate(2024, time.April, 30)
	debt, created, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "Tuition March", Amount: dec("300"), DueDate: &due})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "Tuition March", Amount: dec("999")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, debt.ID, again.ID)
	assert.True(t, again.Total.Equal(dec("300")))

	_, _, err = svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: 999, Concept: "Tuition March", Amount: dec("300")})
	assert.True(t, core.IsNotFound(err))

	debts, err := svc.ListDebts(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, debts, 1)
}

func TestService_MaterializeDebtCanonicalConcepts(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")

	march, created, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "tuition MARCH", Amount: dec("300")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Tuition March", march.Concept)

	again, created, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "Tuition March", Amount: dec("300")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, march.ID, again.ID)

	enrollment, _, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "ENROLLMENT", Amount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, ledger.EnrollmentConcept, enrollment.Concept)

	other, _, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "Uniform", Amount: dec("45")})
	require.NoError(t, err)
	assert.Equal(t, "Uniform", other.Concept)

	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: "enrollment", Amount: dec("100")})
	require.NoError(t, err)

	statement, err := svc.Statement(ctx, st.ID, ledger.NewDate(2024, time.July, 5).Time)
	require.NoError(t, err)
	require.Len(t, statement, 11)
	require.False(t, statement[0].IsVirtual())
	require.False(t, statement[1].IsVirtual())
	assert.Equal(t, enrollment.ID, *statement[0].DebtID)
	assert.Equal(t, ledger.StatusPaid, statement[0].Status)
	assert.Equal(t, march.ID, *statement[1].DebtID, "the booked debt backs the March line")
}

func TestService_MaterializeDebtConcurrently(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")

	var wg sync.WaitGroup
	ids := make([]int64, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, _, err := svc.MaterializeDebt(ctx, ledger.NewDebt{StudentID: st.ID, Concept: "Tuition May", Amount: dec("300")})
			if assert.NoError(t, err) {
				ids[i] = d.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	debts, err := svc.ListDebts(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, debts, 1)
}

func TestService_RecordPayment(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")
	d := testutil.CreateDebt(t, repo, st.ID, "Tuition March", "300", nil)

	pmt, err := svc.RecordPayment(ctx, ledger.NewPayment{DebtID: d.ID, Amount: dec("150")})
	require.NoError(t, err)
	assert.NotZero(t, pmt.ID)
	assert.False(t, pmt.PaidAt.IsZero())

	_, err = svc.RecordPayment(ctx, ledger.NewPayment{DebtID: 999, Amount: dec("150")})
	assert.Equal(t, ledger.ErrDebtNotFound, err)
}

func TestService_PayPeriod(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	st := testutil.CreateStudent(t, repo, "Ana", "1", "280")
	today := svc.Today()

	statement, err := svc.Statement(ctx, st.ID, today)
	require.NoError(t, err)
	require.Len(t, statement, 10)
	assert.True(t, statement[3].IsVirtual())

	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: "Tuition June", Amount: dec("100")})
	require.NoError(t, err)
	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: "tuition june", Amount: dec("179.95")})
	require.NoError(t, err)

	debts, err := svc.ListDebts(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, debts, 1, "second payment reuses the materialized debt")
	assert.Equal(t, "Tuition June", debts[0].Concept)
	assert.True(t, debts[0].Total.Equal(dec("280")))
	require.NotNil(t, debts[0].DueDate)
	assert.Equal(t, svc.Calendar(today.Year()).DueDate(ledger.Period{Month: time.June}).String(), debts[0].DueDate.String())

	statement, err = svc.Statement(ctx, st.ID, today)
	require.NoError(t, err)
	june := statement[3]
	assert.Equal(t, "Tuition June", june.Concept)
	assert.False(t, june.IsVirtual())
	assert.Equal(t, ledger.StatusPaid, june.Status)

	// enrollment must be booked to be paid
	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: ledger.EnrollmentConcept, Amount: dec("100")})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "concept", vErr.Fields[0].Field)

	testutil.CreateDebt(t, repo, st.ID, ledger.EnrollmentConcept, "100", nil)
	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: ledger.EnrollmentConcept, Amount: dec("100")})
	require.NoError(t, err)

	_, err = svc.PayPeriod(ctx, st.ID, ledger.PeriodPayment{Concept: "Tuition January", Amount: dec("100")})
	assert.Error(t, err)
	_, err = svc.PayPeriod(ctx, 999, ledger.PeriodPayment{Concept: "Tuition March", Amount: dec("100")})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, dash.Students)
	assert.True(t, dash.Outstanding.IsZero())

	st := testutil.CreateStudent(t, repo, "Ana", "1", "300")
	d := testutil.CreateDebt(t, repo, st.ID, "Tuition March", "300", nil)
	testutil.CreateDebt(t, repo, st.ID, ledger.EnrollmentConcept, "100", nil)
	testutil.CreatePayment(t, repo, d.ID, "120.50")

	dash, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Students)
	assert.True(t, dash.Charged.Equal(dec("400")))
	assert.True(t, dash.Collected.Equal(dec("120.50")))
	assert.True(t, dash.Outstanding.Equal(dec("279.50")))
}
