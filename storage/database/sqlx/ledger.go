package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
)

const (
	studentColumns = "id, name, phone, guardian, national_id, age, grade, section, monthly_rate, is_new_enrollee, created_at"
	debtColumns    = "id, student_id, concept, total, due_date, created_at"
	paymentColumns = "id, debt_id, amount, paid_at"
)

type (
	studentRow struct {
		ID            int64           `db:"id"`
		Name          string          `db:"name"`
		Phone         string          `db:"phone"`
		Guardian      string          `db:"guardian"`
		NationalID    string          `db:"national_id"`
		Age           null.Int        `db:"age"`
		Grade         string          `db:"grade"`
		Section       string          `db:"section"`
		MonthlyRate   decimal.Decimal `db:"monthly_rate"`
		IsNewEnrollee bool            `db:"is_new_enrollee"`
		CreatedAt     time.Time       `db:"created_at"`
	}

	debtRow struct {
		ID        int64           `db:"id"`
		StudentID int64           `db:"student_id"`
		Concept   string          `db:"concept"`
		Total     decimal.Decimal `db:"total"`
		DueDate   null.Time       `db:"due_date"`
		CreatedAt time.Time       `db:"created_at"`
	}

	paymentRow struct {
		ID     int64           `db:"id"`
		DebtID int64           `db:"debt_id"`
		Amount decimal.Decimal `db:"amount"`
		PaidAt time.Time       `db:"paid_at"`
	}
)

func (r studentRow) unbind() ledger.Student {
	return ledger.Student{
		ID:            r.ID,
		Name:          r.Name,
		Phone:         r.Phone,
		Guardian:      r.Guardian,
		NationalID:    r.NationalID,
		Age:           r.Age.Ptr(),
		Grade:         r.Grade,
		Section:       r.Section,
		MonthlyRate:   r.MonthlyRate,
		IsNewEnrollee: r.IsNewEnrollee,
		CreatedAt:     r.CreatedAt.UTC(),
		Debts:         []ledger.Debt{},
	}
}

func (r debtRow) unbind() ledger.Debt {
	d := ledger.Debt{
		ID:        r.ID,
		StudentID: r.StudentID,
		Concept:   r.Concept,
		Total:     r.Total,
		CreatedAt: r.CreatedAt.UTC(),
		Payments:  []ledger.Payment{},
	}
	if r.DueDate.Valid {
		due := ledger.DateOf(r.DueDate.Time)
		d.DueDate = &due
	}
	return d
}

func (r paymentRow) unbind() ledger.Payment {
	return ledger.Payment{ID: r.ID, DebtID: r.DebtID, Amount: r.Amount, PaidAt: r.PaidAt.UTC()}
}

func dueDateParam(d *ledger.Date) null.String {
	if d == nil || d.IsZero() {
		return null.String{}
	}
	return null.StringFrom(d.String())
}

// LedgerRepository stores students, debts and payments in Postgres.
type LedgerRepository struct {
	db   *sqlx.DB // nil when bound to a transaction
	exec executor
}

var _ ledger.Repository = (*LedgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db, exec: db}
}

func (repo *LedgerRepository) WithinTx(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if repo.db == nil { // already in a transaction
		return fn(repo)
	}
	return withinTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return fn(&LedgerRepository{exec: tx})
	})
}

func (repo *LedgerRepository) CreateStudent(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `
		INSERT INTO student (name, phone, guardian, national_id, age, grade, section, monthly_rate, is_new_enrollee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+studentColumns,
		st.Name, st.Phone, st.Guardian, st.NationalID, null.IntFromPtr(st.Age), st.Grade, st.Section,
		st.MonthlyRate, st.IsNewEnrollee, st.CreatedAt.UTC())
	if err != nil {
		return ledger.Student{}, errors.Wrap(err, "inserting student")
	}
	return row.unbind(), nil
}

func (repo *LedgerRepository) GetStudent(ctx context.Context, id int64) (ledger.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, repo.exec, &row, "SELECT "+studentColumns+" FROM student WHERE id = $1", id)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return ledger.Student{}, ledger.ErrStudentNotFound
		}
		return ledger.Student{}, errors.Wrap(err, "finding student by ID")
	}

	students := []ledger.Student{row.unbind()}
	if err = repo.loadDebts(ctx, students); err != nil {
		return ledger.Student{}, err
	}
	return students[0], nil
}

func (repo *LedgerRepository) QueryStudents(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Student, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Grade != "" {
			args = append(args, filter.Grade)
			where = append(where, "grade = ?")
		}
		// students with Name, Guardian or National ID matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			args = append(args, val, val, val)
			where = append(where, "(name ILIKE ? OR guardian ILIKE ? OR national_id ILIKE ?)")
		}
	}

	q := "SELECT " + studentColumns + " FROM student"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]ledger.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unbind())
	}
	if err := repo.loadDebts(ctx, students); err != nil {
		return nil, err
	}
	return students, nil
}

// loadDebts fills the Debts (and their Payments) of `students` in place.
func (repo *LedgerRepository) loadDebts(ctx context.Context, students []ledger.Student) error {
	if len(students) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	debts, err := repo.selectDebts(ctx, "student_id IN (?)", ids)
	if err != nil {
		return err
	}

	byStudent := make(map[int64][]ledger.Debt, len(students))
	for _, d := range debts {
		byStudent[d.StudentID] = append(byStudent[d.StudentID], d)
	}
	for i := range students {
		if d, ok := byStudent[students[i].ID]; ok {
			students[i].Debts = d
		}
	}
	return nil
}

// selectDebts returns the debts matching `where` with their payments. Slice args expand IN (?) placeholders.
func (repo *LedgerRepository) selectDebts(ctx context.Context, where string, whereArgs ...interface{}) ([]ledger.Debt, error) {
	q, args, err := sqlx.In("SELECT "+debtColumns+" FROM debt WHERE "+where+" ORDER BY id", whereArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "building debts query")
	}
	var rows []debtRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying debts")
	}
	if len(rows) == 0 {
		return []ledger.Debt{}, nil
	}

	debts := make([]ledger.Debt, 0, len(rows))
	debtIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		debts = append(debts, r.unbind())
		debtIDs = append(debtIDs, r.ID)
	}

	q, args, err = sqlx.In("SELECT "+paymentColumns+" FROM payment WHERE debt_id IN (?) ORDER BY id", debtIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building payments query")
	}
	var pmtRows []paymentRow
	if err = sqlx.SelectContext(ctx, repo.exec, &pmtRows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	byDebt := make(map[int64][]ledger.Payment, len(debts))
	for _, p := range pmtRows {
		byDebt[p.DebtID] = append(byDebt[p.DebtID], p.unbind())
	}
	for i := range debts {
		if p, ok := byDebt[debts[i].ID]; ok {
			debts[i].Payments = p
		}
	}
	return debts, nil
}

func (repo *LedgerRepository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM student WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return ledger.ErrStudentNotFound
	}
	return nil
}

func (repo *LedgerRepository) GetOrCreateDebt(ctx context.Context, debt ledger.Debt) (ledger.Debt, bool, error) {
	var row debtRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `
		INSERT INTO debt (student_id, concept, total, due_date, created_at)
		VALUES ($1, $2, $3, $4::date, $5)
		ON CONFLICT (student_id, concept) DO NOTHING
		RETURNING `+debtColumns,
		debt.StudentID, debt.Concept, debt.Total, dueDateParam(debt.DueDate), debt.CreatedAt.UTC())

	switch {
	case err == nil:
		return row.unbind(), true, nil
	case errors.Cause(err) == sql.ErrNoRows: // already booked
		debts, err := repo.selectDebts(ctx, "student_id = ? AND concept = ?", debt.StudentID, debt.Concept)
		if err != nil {
			return ledger.Debt{}, false, err
		}
		if len(debts) == 0 {
			return ledger.Debt{}, false, errors.New("debt conflict without existing row")
		}
		return debts[0], false, nil
	case pqErrorCode(err) == pqForeignKeyViolation:
		return ledger.Debt{}, false, ledger.ErrStudentNotFound
	default:
		return ledger.Debt{}, false, errors.Wrap(err, "inserting debt")
	}
}

func (repo *LedgerRepository) GetDebt(ctx context.Context, id int64) (ledger.Debt, error) {
	debts, err := repo.selectDebts(ctx, "id = ?", id)
	if err != nil {
		return ledger.Debt{}, err
	}
	if len(debts) == 0 {
		return ledger.Debt{}, ledger.ErrDebtNotFound
	}
	return debts[0], nil
}

func (repo *LedgerRepository) ListDebts(ctx context.Context, studentID int64) ([]ledger.Debt, error) {
	return repo.selectDebts(ctx, "student_id = ?", studentID)
}

func (repo *LedgerRepository) DeleteDebtsByStudentID(ctx context.Context, studentID int64) (int, error) {
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM debt WHERE student_id = $1", studentID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting debts")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted debts")
}

func (repo *LedgerRepository) CreatePayment(ctx context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	var row paymentRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		"INSERT INTO payment (debt_id, amount, paid_at) VALUES ($1, $2, $3) RETURNING "+paymentColumns,
		pmt.DebtID, pmt.Amount, pmt.PaidAt.UTC())
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return ledger.Payment{}, ledger.ErrDebtNotFound
		}
		return ledger.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return row.unbind(), nil
}

func (repo *LedgerRepository) DeletePaymentsByDebtID(ctx context.Context, debtIDs []int64) (int, error) {
	if len(debtIDs) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM payment WHERE debt_id IN (?)", debtIDs)
	if err != nil {
		return 0, errors.Wrap(err, "building payments delete")
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting payments")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted payments")
}

func (repo *LedgerRepository) Totals(ctx context.Context) (ledger.Dashboard, error) {
	var dash ledger.Dashboard
	err := queries.Raw(`
		SELECT
			(SELECT COUNT(*) FROM student)                  AS students,
			(SELECT COALESCE(SUM(total), 0) FROM debt)      AS charged,
			(SELECT COALESCE(SUM(amount), 0) FROM payment)  AS collected
	`).Bind(ctx, repo.exec, &dash)
	if err != nil {
		return ledger.Dashboard{}, errors.Wrap(err, "summing ledger")
	}
	return dash, nil
}
