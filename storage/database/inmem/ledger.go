package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
)

// errForeignKey mirrors the Postgres foreign key constraints.
var errForeignKey = errors.New("inmem: foreign key violation")

type LedgerRepository struct {
	db   *DB
	inTx bool // the DB lock is already held
}

var _ ledger.Repository = (*LedgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (repo *LedgerRepository) read(fn func(t *tables) error) error {
	if !repo.inTx {
		repo.db.mu.RLock()
		defer repo.db.mu.RUnlock()
	}
	return fn(&repo.db.tables)
}

func (repo *LedgerRepository) write(fn func(t *tables) error) error {
	if !repo.inTx {
		repo.db.mu.Lock()
		defer repo.db.mu.Unlock()
	}
	return fn(&repo.db.tables)
}

func (repo *LedgerRepository) WithinTx(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	return repo.db.withinTx(func() error {
		return fn(&LedgerRepository{db: repo.db, inTx: true})
	})
}

func (repo *LedgerRepository) CreateStudent(ctx context.Context, st ledger.Student) (ledger.Student, error) {
	err := repo.write(func(t *tables) error {
		t.studentPK++
		st.ID = t.studentPK
		st.Debts = nil
		t.students[st.ID] = st
		return nil
	})
	st.Debts = []ledger.Debt{}
	return st, err
}

func (repo *LedgerRepository) GetStudent(ctx context.Context, id int64) (ledger.Student, error) {
	var st ledger.Student
	err := repo.read(func(t *tables) error {
		var ok bool
		if st, ok = t.students[id]; !ok {
			return ledger.ErrStudentNotFound
		}
		st.Debts = t.studentDebts(id)
		return nil
	})
	return st, err
}

func (repo *LedgerRepository) QueryStudents(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Student, error) {
	var students []ledger.Student
	err := repo.read(func(t *tables) error {
		students = make([]ledger.Student, 0, len(t.students))
		for _, st := range t.students {
			if !matchStudent(st, filter) {
				continue
			}
			st.Debts = t.studentDebts(st.ID)
			students = append(students, st)
		}
		return nil
	})
	sortStudents(students, ordering)
	return students, err
}

func matchStudent(st ledger.Student, filter *ledger.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Grade != "" && st.Grade != filter.Grade {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(st.Name), search) ||
			strings.Contains(strings.ToLower(st.Guardian), search) ||
			strings.Contains(strings.ToLower(st.NationalID), search)
	}
	return true
}

// sortStudents sorts by each ordering in turn, then by ID.
func sortStudents(students []ledger.Student, ordering []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "id":
				cmp = compareInt64(a.ID, b.ID)
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "grade":
				cmp = strings.Compare(a.Grade, b.Grade)
			case "created_at":
				cmp = compareInt64(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
			}
			if cmp != 0 {
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return a.ID < b.ID
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (t *tables) studentDebts(studentID int64) []ledger.Debt {
	debts := make([]ledger.Debt, 0)
	for _, d := range t.debts {
		if d.StudentID == studentID {
			d.Payments = t.debtPayments(d.ID)
			debts = append(debts, d)
		}
	}
	sort.Slice(debts, func(i, j int) bool { return debts[i].ID < debts[j].ID })
	return debts
}

func (t *tables) debtPayments(debtID int64) []ledger.Payment {
	payments := make([]ledger.Payment, 0)
	for _, p := range t.payments {
		if p.DebtID == debtID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments
}

func (repo *LedgerRepository) DeleteStudent(ctx context.Context, id int64) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.students[id]; !ok {
			return ledger.ErrStudentNotFound
		}
		for _, d := range t.debts {
			if d.StudentID == id {
				return errors.Wrap(errForeignKey, "student still has debts")
			}
		}
		delete(t.students, id)
		return nil
	})
}

func (repo *LedgerRepository) GetOrCreateDebt(ctx context.Context, debt ledger.Debt) (ledger.Debt, bool, error) {
	var created bool
	err := repo.write(func(t *tables) error {
		if _, ok := t.students[debt.StudentID]; !ok {
			return ledger.ErrStudentNotFound
		}
		for _, d := range t.debts {
			if d.StudentID == debt.StudentID && d.Concept == debt.Concept {
				debt = d
				debt.Payments = t.debtPayments(d.ID)
				return nil
			}
		}
		t.debtPK++
		debt.ID = t.debtPK
		debt.Payments = nil
		t.debts[debt.ID] = debt
		debt.Payments = []ledger.Payment{}
		created = true
		return nil
	})
	if err != nil {
		return ledger.Debt{}, false, err
	}
	return debt, created, nil
}

func (repo *LedgerRepository) GetDebt(ctx context.Context, id int64) (ledger.Debt, error) {
	var debt ledger.Debt
	err := repo.read(func(t *tables) error {
		var ok bool
		if debt, ok = t.debts[id]; !ok {
			return ledger.ErrDebtNotFound
		}
		debt.Payments = t.debtPayments(id)
		return nil
	})
	return debt, err
}

func (repo *LedgerRepository) ListDebts(ctx context.Context, studentID int64) ([]ledger.Debt, error) {
	var debts []ledger.Debt
	err := repo.read(func(t *tables) error {
		debts = t.studentDebts(studentID)
		return nil
	})
	return debts, err
}

func (repo *LedgerRepository) DeleteDebtsByStudentID(ctx context.Context, studentID int64) (int, error) {
	var cnt int
	err := repo.write(func(t *tables) error {
		for id, d := range t.debts {
			if d.StudentID != studentID {
				continue
			}
			for _, p := range t.payments {
				if p.DebtID == id {
					return errors.Wrap(errForeignKey, "debt still has payments")
				}
			}
			delete(t.debts, id)
			cnt++
		}
		return nil
	})
	return cnt, err
}

func (repo *LedgerRepository) CreatePayment(ctx context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.debts[pmt.DebtID]; !ok {
			return ledger.ErrDebtNotFound
		}
		t.paymentPK++
		pmt.ID = t.paymentPK
		t.payments[pmt.ID] = pmt
		return nil
	})
	if err != nil {
		return ledger.Payment{}, err
	}
	return pmt, nil
}

func (repo *LedgerRepository) DeletePaymentsByDebtID(ctx context.Context, debtIDs []int64) (int, error) {
	var cnt int
	err := repo.write(func(t *tables) error {
		ids := make(map[int64]bool, len(debtIDs))
		for _, id := range debtIDs {
			ids[id] = true
		}
		for id, p := range t.payments {
			if ids[p.DebtID] {
				delete(t.payments, id)
				cnt++
			}
		}
		return nil
	})
	return cnt, err
}

func (repo *LedgerRepository) Totals(ctx context.Context) (ledger.Dashboard, error) {
	var dash ledger.Dashboard
	err := repo.read(func(t *tables) error {
		dash.Students = len(t.students)
		for _, d := range t.debts {
			dash.Charged = dash.Charged.Add(d.Total)
		}
		for _, p := range t.payments {
			dash.Collected = dash.Collected.Add(p.Amount)
		}
		return nil
	})
	return dash, err
}
