package inmemdb

import (
	"sync"

	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
)

type (
	// DB is an in-memory database. A single lock guards every table.
	DB struct {
		mu     sync.RWMutex
		tables tables
	}

	tables struct {
		users    map[int64]user.User
		students map[int64]ledger.Student // without Debts
		debts    map[int64]ledger.Debt    // without Payments
		payments map[int64]ledger.Payment

		userPK, studentPK, debtPK, paymentPK int64
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:    make(map[int64]user.User),
		students: make(map[int64]ledger.Student),
		debts:    make(map[int64]ledger.Debt),
		payments: make(map[int64]ledger.Payment),
	}
}

// snapshot copies the tables so that a failed transaction can be undone.
func (t tables) snapshot() tables {
	cp := t
	cp.users = make(map[int64]user.User, len(t.users))
	for k, v := range t.users {
		cp.users[k] = v
	}
	cp.students = make(map[int64]ledger.Student, len(t.students))
	for k, v := range t.students {
		cp.students[k] = v
	}
	cp.debts = make(map[int64]ledger.Debt, len(t.debts))
	for k, v := range t.debts {
		cp.debts[k] = v
	}
	cp.payments = make(map[int64]ledger.Payment, len(t.payments))
	for k, v := range t.payments {
		cp.payments[k] = v
	}
	return cp
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	db.tables = newTables()
	db.mu.Unlock()
}

// withinTx holds the write lock while fn runs and restores the tables if it fails.
func (db *DB) withinTx(fn func() error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	saved := db.tables.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.tables = saved
			panic(p)
		}
	}()
	if err = fn(); err != nil {
		db.tables = saved
	}
	return err
}
