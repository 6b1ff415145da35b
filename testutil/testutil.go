// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
	logsvc "github.com/trezcool/cuota/services/logger"
	"github.com/trezcool/cuota/storage/database"
)

// TestDatabaseURLEnv names the variable holding the DSN of a disposable Postgres database.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

// DefaultPassword is the password of users created with an empty one.
const DefaultPassword = "Str0ng!Pass"

// NewLogger returns a core.Logger that writes nowhere.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(zap.NewNop(), core.NewTestConfig())
}

// OpenDB opens and migrates the database at $TEST_DATABASE_URL, skipping the test if it is not set.
// Tables are emptied before the test and the connection is closed after it.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", TestDatabaseURLEnv)
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db, "up", NewLogger()); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec(`TRUNCATE payment, debt, student, "user" RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		pwd = DefaultPassword
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo ledger.Repository,
	name, grade, monthlyRate string,
	createdAt ...time.Time,
) ledger.Student {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	st, err := repo.CreateStudent(context.Background(), ledger.Student{
		Name:        name,
		Grade:       grade,
		MonthlyRate: decimal.RequireFromString(monthlyRate),
		CreatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateDebt(t *testing.T, repo ledger.Repository, studentID int64, concept, total string, dueDate *ledger.Date) ledger.Debt {
	t.Helper()
	debt, _, err := repo.GetOrCreateDebt(context.Background(), ledger.Debt{
		StudentID: studentID,
		Concept:   concept,
		Total:     decimal.RequireFromString(total),
		DueDate:   dueDate,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateDebt() failed: %v", err)
	}
	return debt
}

func CreatePayment(t *testing.T, repo ledger.Repository, debtID int64, amount string, paidAt ...time.Time) ledger.Payment {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(paidAt) > 0 {
		tstamp = paidAt[0].UTC()
	}
	pmt, err := repo.CreatePayment(context.Background(), ledger.Payment{
		DebtID: debtID,
		Amount: decimal.RequireFromString(amount),
		PaidAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return pmt
}
