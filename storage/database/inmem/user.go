package inmemdb

import (
	"context"

	"github.com/trezcool/cuota/core/user"
)

type UserRepository struct {
	db *DB
}

var _ user.Repository = (*UserRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (repo *UserRepository) find(match func(usr user.User) bool) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.tables.users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *UserRepository) CheckUsernameUniqueness(ctx context.Context, username, email string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.tables.users {
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.tables.userPK++
	usr.ID = repo.db.tables.userPK
	repo.db.tables.users[usr.ID] = usr
	return usr, nil
}

func (repo *UserRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.tables.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *UserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.find(func(usr user.User) bool { return usr.Email == email })
}

func (repo *UserRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.find(func(usr user.User) bool { return usr.Username == username || usr.Email == username })
}

func (repo *UserRepository) update(id int64, fn func(usr *user.User)) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.tables.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	fn(&usr)
	repo.db.tables.users[id] = usr
	return usr, nil
}

func (repo *UserRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	return repo.update(usr.ID, func(u *user.User) { u.LastLogin = usr.LastLogin })
}

func (repo *UserRepository) SetPassword(ctx context.Context, usr user.User) (user.User, error) {
	return repo.update(usr.ID, func(u *user.User) {
		u.PasswordHash = usr.PasswordHash
		u.UpdatedAt = usr.UpdatedAt
	})
}
