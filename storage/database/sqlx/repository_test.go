package sqlxrepos_test

import (
	"testing"

	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
	sqlxrepos "github.com/trezcool/cuota/storage/database/sqlx"
	"github.com/trezcool/cuota/testutil"
)

// These tests run against $TEST_DATABASE_URL and are skipped when it is not set.

func TestLedgerRepository(t *testing.T) {
	testutil.RunLedgerRepositoryTests(t, func(t *testing.T) ledger.Repository {
		return sqlxrepos.NewLedgerRepository(testutil.OpenDB(t))
	})
}

func TestUserRepository(t *testing.T) {
	testutil.RunUserRepositoryTests(t, func(t *testing.T) user.Repository {
		return sqlxrepos.NewUserRepository(testutil.OpenDB(t))
	})
}
