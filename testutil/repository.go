package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
)

// RunLedgerRepositoryTests checks the behaviour every ledger.Repository must share.
// newRepo must return a repository over an empty store.
func RunLedgerRepositoryTests(t *testing.T, newRepo func(t *testing.T) ledger.Repository) {
	ctx := context.Background()
	dec := decimal.RequireFromString
	tstamp := time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

	t.Run("students", func(t *testing.T) {
		repo := newRepo(t)
		age := 11
		st, err := repo.CreateStudent(ctx, ledger.Student{
			Name: "Ana Quispe", Guardian: "Rosa Quispe", NationalID: "70112233", Age: &age,
			Grade: "5", Section: "A", MonthlyRate: dec("280.50"), IsNewEnrollee: true, CreatedAt: tstamp,
		})
		require.NoError(t, err)
		require.NotZero(t, st.ID)

		got, err := repo.GetStudent(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Quispe", got.Name)
		require.NotNil(t, got.Age)
		assert.Equal(t, 11, *got.Age)
		assert.True(t, got.MonthlyRate.Equal(dec("280.5")), got.MonthlyRate.String())
		assert.True(t, got.IsNewEnrollee)
		assert.True(t, got.CreatedAt.Equal(tstamp))
		assert.Empty(t, got.Debts)

		_, err = repo.GetStudent(ctx, st.ID+100)
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
	})

	t.Run("query students", func(t *testing.T) {
		repo := newRepo(t)
		for _, st := range []ledger.Student{
			{Name: "Carla", Grade: "2", Guardian: "Luis Huaman"},
			{Name: "Ana", Grade: "1", Guardian: "Rosa Quispe"},
			{Name: "Beto", Grade: "1", NationalID: "HUA-1"},
		} {
			st.MonthlyRate = dec("300")
			st.CreatedAt = tstamp
			_, err := repo.CreateStudent(ctx, st)
			require.NoError(t, err)
		}
		names := func(students []ledger.Student) []string {
			out := make([]string, 0, len(students))
			for _, st := range students {
				out = append(out, st.Name)
			}
			return out
		}
		byName := []core.DBOrdering{{Field: "name", Ascending: true}}

		students, err := repo.QueryStudents(ctx, nil, byName)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ana", "Beto", "Carla"}, names(students))

		students, err = repo.QueryStudents(ctx, &ledger.QueryFilter{Grade: "1"}, []core.DBOrdering{{Field: "name"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"Beto", "Ana"}, names(students))

		// matches guardian and national ID, case insensitive
		students, err = repo.QueryStudents(ctx, &ledger.QueryFilter{Search: "hua"}, byName)
		require.NoError(t, err)
		assert.Equal(t, []string{"Beto", "Carla"}, names(students))

		students, err = repo.QueryStudents(ctx, &ledger.QueryFilter{Grade: "3"}, byName)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("debts and payments", func(t *testing.T) {
		repo := newRepo(t)
		st := CreateStudent(t, repo, "Ana", "1", "300")
		due := ledger.NewDate(2024, time.April, 30)

		debt, created, err := repo.GetOrCreateDebt(ctx, ledger.Debt{
			StudentID: st.ID, Concept: "Tuition March", Total: dec("300"), DueDate: &due, CreatedAt: tstamp,
		})
		require.NoError(t, err)
		assert.True(t, created)
		require.NotNil(t, debt.DueDate)
		assert.Equal(t, "2024-04-30", debt.DueDate.String())

		again, created, err := repo.GetOrCreateDebt(ctx, ledger.Debt{
			StudentID: st.ID, Concept: "Tuition March", Total: dec("999"), CreatedAt: tstamp,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, debt.ID, again.ID)
		assert.True(t, again.Total.Equal(dec("300")))

		_, _, err = repo.GetOrCreateDebt(ctx, ledger.Debt{StudentID: st.ID + 100, Concept: "Enrollment", Total: dec("100"), CreatedAt: tstamp})
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))

		enrollment := CreateDebt(t, repo, st.ID, ledger.EnrollmentConcept, "100", nil)
		assert.Nil(t, enrollment.DueDate)

		_, err = repo.CreatePayment(ctx, ledger.Payment{DebtID: debt.ID + 100, Amount: dec("10"), PaidAt: tstamp})
		assert.Equal(t, ledger.ErrDebtNotFound, errors.Cause(err))

		CreatePayment(t, repo, debt.ID, "120.50", tstamp)
		CreatePayment(t, repo, debt.ID, "79.50", tstamp.Add(time.Hour))

		got, err := repo.GetDebt(ctx, debt.ID)
		require.NoError(t, err)
		require.Len(t, got.Payments, 2)
		assert.True(t, got.Payments[0].PaidAt.Equal(tstamp))
		assert.True(t, got.Balance().Equal(dec("100")), got.Balance().String())

		_, err = repo.GetDebt(ctx, debt.ID+100)
		assert.Equal(t, ledger.ErrDebtNotFound, errors.Cause(err))

		debts, err := repo.ListDebts(ctx, st.ID)
		require.NoError(t, err)
		require.Len(t, debts, 2)
		assert.Equal(t, debt.ID, debts[0].ID)
		assert.Equal(t, enrollment.ID, debts[1].ID)

		stored, err := repo.GetStudent(ctx, st.ID)
		require.NoError(t, err)
		require.Len(t, stored.Debts, 2)
		assert.Len(t, stored.Debts[0].Payments, 2)

		dash, err := repo.Totals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, dash.Students)
		assert.True(t, dash.Charged.Equal(dec("400")), dash.Charged.String())
		assert.True(t, dash.Collected.Equal(dec("200")), dash.Collected.String())
	})

	t.Run("delete student", func(t *testing.T) {
		repo := newRepo(t)
		st := CreateStudent(t, repo, "Ana", "1", "300")
		other := CreateStudent(t, repo, "Beto", "1", "300")
		debt := CreateDebt(t, repo, st.ID, "Tuition March", "300", nil)
		CreateDebt(t, repo, st.ID, ledger.EnrollmentConcept, "100", nil)
		otherDebt := CreateDebt(t, repo, other.ID, "Tuition March", "300", nil)
		CreatePayment(t, repo, debt.ID, "100")
		CreatePayment(t, repo, otherDebt.ID, "100")

		// debts and payments reference their owner
		assert.Error(t, repo.DeleteStudent(ctx, st.ID))

		cnt, err := repo.DeletePaymentsByDebtID(ctx, []int64{debt.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
		cnt, err = repo.DeleteDebtsByStudentID(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)
		require.NoError(t, repo.DeleteStudent(ctx, st.ID))
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(repo.DeleteStudent(ctx, st.ID)))

		cnt, err = repo.DeletePaymentsByDebtID(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, cnt)

		left, err := repo.GetDebt(ctx, otherDebt.ID)
		require.NoError(t, err)
		assert.Len(t, left.Payments, 1)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		repo := newRepo(t)
		boom := errors.New("boom")
		var id int64

		err := repo.WithinTx(ctx, func(tx ledger.Repository) error {
			st, err := tx.CreateStudent(ctx, ledger.Student{Name: "Ana", MonthlyRate: dec("300"), CreatedAt: tstamp})
			if err != nil {
				return err
			}
			id = st.ID
			// nested transactions join the outer one
			return tx.WithinTx(ctx, func(tx ledger.Repository) error {
				if _, _, err := tx.GetOrCreateDebt(ctx, ledger.Debt{StudentID: st.ID, Concept: "Enrollment", Total: dec("100"), CreatedAt: tstamp}); err != nil {
					return err
				}
				return boom
			})
		})
		assert.Equal(t, boom, errors.Cause(err))

		_, err = repo.GetStudent(ctx, id)
		assert.Equal(t, ledger.ErrStudentNotFound, errors.Cause(err))
		dash, err := repo.Totals(ctx)
		require.NoError(t, err)
		assert.Zero(t, dash.Students)
		assert.True(t, dash.Charged.IsZero())
	})
}

// RunUserRepositoryTests checks the behaviour every user.Repository must share.
// newRepo must return a repository over an empty store.
func RunUserRepositoryTests(t *testing.T, newRepo func(t *testing.T) user.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		usr := CreateUser(t, repo, "Ana", "anaq", "ana@school.test", "", true)
		require.NotZero(t, usr.ID)

		got, err := repo.GetUserByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "anaq", got.Username)
		assert.True(t, got.IsActive)
		assert.NoError(t, got.CheckPassword(DefaultPassword))

		got, err = repo.GetUserByEmail(ctx, "ana@school.test")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		for _, uname := range []string{"anaq", "ana@school.test"} {
			got, err = repo.GetUserByUsernameOrEmail(ctx, uname)
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
		}

		_, err = repo.GetUserByID(ctx, usr.ID+100)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		_, err = repo.GetUserByEmail(ctx, "")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		_, err = repo.GetUserByUsernameOrEmail(ctx, "nobody")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("uniqueness", func(t *testing.T) {
		repo := newRepo(t)
		CreateUser(t, repo, "Ana", "anaq", "ana@school.test", "", true)

		assert.Equal(t, user.ErrUsernameExists, errors.Cause(repo.CheckUsernameUniqueness(ctx, "anaq", "")))
		assert.Equal(t, user.ErrEmailExists, errors.Cause(repo.CheckUsernameUniqueness(ctx, "beto", "ana@school.test")))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "beto", ""))

		_, err := repo.CreateUser(ctx, user.User{Name: "Ana 2", Username: "anaq", CreatedAt: time.Now().UTC()})
		assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
	})

	t.Run("updates", func(t *testing.T) {
		repo := newRepo(t)
		usr := CreateUser(t, repo, "Ana", "anaq", "", "", true)
		now := time.Now().UTC().Truncate(time.Second)

		usr.LastLogin = now
		_, err := repo.SetLastLogin(ctx, usr)
		require.NoError(t, err)

		require.NoError(t, usr.SetPassword("N3w!Secret"))
		usr.UpdatedAt = now
		_, err = repo.SetPassword(ctx, usr)
		require.NoError(t, err)

		got, err := repo.GetUserByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.True(t, got.LastLogin.Equal(now))
		assert.True(t, got.UpdatedAt.Equal(now))
		assert.NoError(t, got.CheckPassword("N3w!Secret"))

		_, err = repo.SetPassword(ctx, user.User{ID: usr.ID + 100})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}
