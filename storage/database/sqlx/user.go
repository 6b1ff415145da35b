package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cuota/core/user"
)

const userColumns = "id, name, username, email, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func bindUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) unbind() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

// UserRepository stores the staff users in Postgres.
type UserRepository struct {
	exec executor
}

var _ user.Repository = (*UserRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{exec: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *UserRepository) getUser(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `SELECT `+userColumns+` FROM "user" WHERE `+where+` LIMIT 1`, args...)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user")
	}
	return row.unbind(), nil
}

func (repo *UserRepository) CheckUsernameUniqueness(ctx context.Context, username, email string) error {
	var row struct {
		UsernameTaken bool `db:"username_taken"`
		EmailTaken    bool `db:"email_taken"`
	}
	err := sqlx.GetContext(ctx, repo.exec, &row, `
		SELECT
			EXISTS(SELECT 1 FROM "user" WHERE $1 <> '' AND username = $1) AS username_taken,
			EXISTS(SELECT 1 FROM "user" WHERE $2 <> '' AND email = $2)    AS email_taken`,
		username, email)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if row.UsernameTaken {
		return user.ErrUsernameExists
	}
	if row.EmailTaken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	rows, err := sqlx.NamedQueryContext(ctx, repo.exec, `
		INSERT INTO "user" (name, username, email, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :is_active, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING `+userColumns,
		bindUser(usr))
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == "user_email_key" {
				return user.User{}, user.ErrEmailExists
			}
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	defer func() { _ = rows.Close() }()

	var row userRow
	if !rows.Next() {
		return user.User{}, errors.Wrap(rows.Err(), "inserting user: no row returned")
	}
	if err = rows.StructScan(&row); err != nil {
		return user.User{}, errors.Wrap(err, "scanning user")
	}
	return row.unbind(), nil
}

func (repo *UserRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo *UserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "email = $1", email)
}

func (repo *UserRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "username = $1 OR email = $1", username)
}

func (repo *UserRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.exec.ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, usr.LastLogin.UTC(), usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating last login")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *UserRepository) SetPassword(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.exec.ExecContext(ctx,
		`UPDATE "user" SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		usr.PasswordHash, usr.UpdatedAt.UTC(), usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating password")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
